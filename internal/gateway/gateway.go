// Package gateway fans session events out to every connection the
// coordinator has bound to a room. Delivery is best-effort: sends are
// non-blocking, a full outbox drops that event for that connection, and a
// connection sitting in its grace window receives nothing until its own
// rejoin triggers a fresh broadcast.
package gateway

import (
	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/internal/coord"
	"github.com/planpoker/planning-poker-backend/internal/room"
	"github.com/planpoker/planning-poker-backend/pkg/types"
)

type Gateway struct {
	coord *coord.Coordinator
	log   *zap.Logger
}

func New(c *coord.Coordinator, log *zap.Logger) *Gateway {
	return &Gateway{coord: c, log: log}
}

func (g *Gateway) emit(roomID string, ev types.ServerEvent) {
	for _, out := range g.coord.RoomOutboxes(roomID) {
		select {
		case out <- ev:
		default:
			// Slow consumer; drop this event rather than block the session.
			g.log.Debug("dropping event for slow connection",
				zap.String("room", roomID), zap.String("event", ev.Type))
		}
	}
}

func (g *Gateway) RoomState(roomID string, snap room.Snapshot) {
	g.emit(roomID, types.ServerEvent{
		Type:    types.EvtRoomState,
		Payload: types.RoomStatePayload{Room: snap},
	})
}

func (g *Gateway) MemberJoined(roomID string, m room.MemberView) {
	g.emit(roomID, types.ServerEvent{
		Type:    types.EvtMemberJoined,
		Payload: types.MemberJoinedPayload{RoomID: roomID, Member: m},
	})
}

func (g *Gateway) MemberLeft(roomID, memberID string) {
	g.emit(roomID, types.ServerEvent{
		Type:    types.EvtMemberLeft,
		Payload: types.MemberLeftPayload{RoomID: roomID, MemberID: memberID},
	})
}

func (g *Gateway) VoteCast(roomID, memberID string) {
	g.emit(roomID, types.ServerEvent{
		Type:    types.EvtVoteCast,
		Payload: types.VoteCastPayload{RoomID: roomID, MemberID: memberID, HasVoted: true},
	})
}

func (g *Gateway) VotesRevealed(roomID string, stats room.Stats) {
	g.emit(roomID, types.ServerEvent{
		Type: types.EvtVotesRevealed,
		Payload: types.VotesRevealedPayload{
			RoomID:     roomID,
			Results:    stats.Results,
			Average:    stats.Average,
			TotalVotes: stats.TotalVotes,
		},
	})
}

// SendError notifies a single connection. Never broadcast.
func (g *Gateway) SendError(connID, code, message string) {
	out, ok := g.coord.Outbox(connID)
	if !ok {
		return
	}
	ev := types.ServerEvent{
		Type:    types.EvtError,
		Payload: types.ErrorPayload{Code: code, Message: message},
	}
	select {
	case out <- ev:
	default:
		g.log.Debug("dropping error for slow connection", zap.String("conn", connID))
	}
}
