// Package session runs one goroutine per room. Every mutation (join, leave,
// vote, reveal, reset, and the delayed eviction after a disconnect) flows
// through the actor's inbox, so operations on one room are serialized and
// broadcasts go out in the exact order mutations were accepted. Different
// rooms share nothing and run fully in parallel.
package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/internal/room"
	"github.com/planpoker/planning-poker-backend/internal/store"
	"github.com/planpoker/planning-poker-backend/internal/vote"
)

// Broadcaster delivers named events to every connection bound to a room.
// Implemented by the gateway.
type Broadcaster interface {
	RoomState(roomID string, snap room.Snapshot)
	MemberJoined(roomID string, m room.MemberView)
	MemberLeft(roomID, memberID string)
	VoteCast(roomID, memberID string)
	VotesRevealed(roomID string, stats room.Stats)
}

type msg interface{ isSessionMsg() }

type joinMsg struct {
	memberID string
	name     string
	reply    chan error
}

type leaveMsg struct {
	memberID string
	reply    chan bool
}

type voteMsg struct {
	memberID string
	card     vote.Card
	reply    chan error
}

type revealMsg struct {
	reply chan revealReply
}

type revealReply struct {
	stats room.Stats
	err   error
}

type resetMsg struct {
	reply chan struct{}
}

type stateMsg struct {
	reply chan room.Snapshot
}

type shutdownMsg struct{}

func (joinMsg) isSessionMsg()     {}
func (leaveMsg) isSessionMsg()    {}
func (voteMsg) isSessionMsg()     {}
func (revealMsg) isSessionMsg()   {}
func (resetMsg) isSessionMsg()    {}
func (stateMsg) isSessionMsg()    {}
func (shutdownMsg) isSessionMsg() {}

type Session struct {
	inbox  chan msg
	room   *room.Room
	store  store.Store
	bcast  Broadcaster
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, rm *room.Room, st store.Store, b Broadcaster, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:  make(chan msg, 64),
		room:   rm,
		store:  st,
		bcast:  b,
		log:    log.With(zap.String("room", rm.ID)),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.loop()
	return s
}

func (s *Session) ID() string { return s.room.ID }

// Join adds the member, or refreshes the display name when the id is already
// present (a rejoin after a reload).
func (s *Session) Join(memberID, name string) error {
	reply := make(chan error, 1)
	s.inbox <- joinMsg{memberID: memberID, name: name, reply: reply}
	return <-reply
}

// Leave removes the member. Reports whether anyone was actually removed.
func (s *Session) Leave(memberID string) bool {
	reply := make(chan bool, 1)
	s.inbox <- leaveMsg{memberID: memberID, reply: reply}
	return <-reply
}

func (s *Session) Vote(memberID string, card vote.Card) error {
	reply := make(chan error, 1)
	s.inbox <- voteMsg{memberID: memberID, card: card, reply: reply}
	return <-reply
}

// Reveal freezes the round and persists the running score. A store failure
// is returned to the caller but the in-memory reveal stands; the score is
// reconciled on the next successful write.
func (s *Session) Reveal() (room.Stats, error) {
	reply := make(chan revealReply, 1)
	s.inbox <- revealMsg{reply: reply}
	r := <-reply
	return r.stats, r.err
}

func (s *Session) Reset() {
	reply := make(chan struct{}, 1)
	s.inbox <- resetMsg{reply: reply}
	<-reply
}

// State returns a snapshot without racing the loop.
func (s *Session) State() room.Snapshot {
	reply := make(chan room.Snapshot, 1)
	s.inbox <- stateMsg{reply: reply}
	return <-reply
}

func (s *Session) Shutdown() {
	s.inbox <- shutdownMsg{}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.inbox:
			switch m := m.(type) {
			case joinMsg:
				err := s.room.AddMember(m.memberID, m.name)
				if err == nil {
					s.room.Rename(m.memberID, m.name)
					s.bcast.RoomState(s.room.ID, s.room.Snapshot())
					if mv, ok := s.room.MemberView(m.memberID); ok {
						s.bcast.MemberJoined(s.room.ID, mv)
					}
				}
				m.reply <- err

			case leaveMsg:
				removed := s.room.RemoveMember(m.memberID)
				if removed {
					s.bcast.RoomState(s.room.ID, s.room.Snapshot())
					s.bcast.MemberLeft(s.room.ID, m.memberID)
				}
				m.reply <- removed

			case voteMsg:
				err := s.room.CastVote(m.memberID, m.card)
				if err == nil {
					s.bcast.RoomState(s.room.ID, s.room.Snapshot())
					s.bcast.VoteCast(s.room.ID, m.memberID)
				}
				m.reply <- err

			case revealMsg:
				stats, err := s.room.Reveal()
				if err != nil {
					m.reply <- revealReply{err: err}
					break
				}
				s.bcast.RoomState(s.room.ID, s.room.Snapshot())
				s.bcast.VotesRevealed(s.room.ID, stats)
				// Persist after the in-memory mutation. The reveal already
				// happened; a write failure only delays durability.
				if perr := s.store.UpdateRunningScore(s.ctx, s.room.ID, stats.Average); perr != nil {
					s.log.Warn("persisting running score failed", zap.Error(perr))
					m.reply <- revealReply{stats: stats, err: perr}
					break
				}
				m.reply <- revealReply{stats: stats}

			case resetMsg:
				s.room.ResetVotes()
				s.bcast.RoomState(s.room.ID, s.room.Snapshot())
				m.reply <- struct{}{}

			case stateMsg:
				m.reply <- s.room.Snapshot()

			case shutdownMsg:
				s.cancel()
				return
			}
		}
	}
}
