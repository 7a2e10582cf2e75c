// Package types defines the wire surface shared by the WebSocket and HTTP
// boundaries: inbound client events, outbound server events, and the error
// codes clients key off.
package types

import (
	"github.com/planpoker/planning-poker-backend/internal/room"
	"github.com/planpoker/planning-poker-backend/internal/vote"
)

// Client -> server event types.
const (
	MsgJoin   = "join"
	MsgLeave  = "leave"
	MsgVote   = "vote"
	MsgReveal = "reveal"
	MsgReset  = "reset"
)

// ClientMessage is a single inbound event. Which fields are required depends
// on Type; the ws handler validates before anything reaches a session.
type ClientMessage struct {
	Type     string     `json:"type"`
	RoomID   string     `json:"roomId,omitempty"`
	MemberID string     `json:"memberId,omitempty"`
	Name     string     `json:"name,omitempty"`
	Vote     *vote.Card `json:"vote,omitempty"`
}

// Server -> client event names.
const (
	EvtRoomState     = "room-state"
	EvtMemberJoined  = "member-joined"
	EvtMemberLeft    = "member-left"
	EvtVoteCast      = "vote-cast"
	EvtVotesRevealed = "votes-revealed"
	EvtError         = "error"
)

// ServerEvent is the envelope for everything pushed to clients.
type ServerEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type RoomStatePayload struct {
	Room room.Snapshot `json:"room"`
}

type MemberJoinedPayload struct {
	RoomID string          `json:"roomId"`
	Member room.MemberView `json:"member"`
}

type MemberLeftPayload struct {
	RoomID   string `json:"roomId"`
	MemberID string `json:"memberId"`
}

// VoteCastPayload announces that a member voted. It never carries the vote
// value; that stays hidden until the reveal.
type VoteCastPayload struct {
	RoomID   string `json:"roomId"`
	MemberID string `json:"memberId"`
	HasVoted bool   `json:"hasVoted"`
}

type VotesRevealedPayload struct {
	RoomID     string            `json:"roomId"`
	Results    []room.VoteResult `json:"results"`
	Average    float64           `json:"average"`
	TotalVotes int               `json:"totalVotes"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
