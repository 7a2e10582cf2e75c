package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/internal/coord"
	"github.com/planpoker/planning-poker-backend/internal/gateway"
	"github.com/planpoker/planning-poker-backend/internal/hub"
	"github.com/planpoker/planning-poker-backend/internal/store"
	"github.com/planpoker/planning-poker-backend/pkg/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the connection and runs its read loop. Each connection
// isolates its own failures: a bad event gets an error reply to that
// connection only, never a broadcast and never a crash.
func Handler(h *hub.Hub, c *coord.Coordinator, gw *gateway.Gateway, origins []string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: origins,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		outbox := make(chan types.ServerEvent, 16)
		c.Register(connID, outbox)
		defer c.Disconnected(connID)

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case ev := <-outbox:
					payload, err := json.Marshal(ev)
					if err != nil {
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				}
			}
		}()

		sess := newConnSession(connID, h, c, gw, log.With(zap.String("conn", connID)))

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var m types.ClientMessage
			if err := json.Unmarshal(data, &m); err != nil {
				gw.SendError(connID, types.CodeValidationError, "malformed message")
				continue
			}

			sess.handle(r.Context(), m)
		}
	}
}

// connSession is the per-connection dispatch state.
type connSession struct {
	connID string
	hub    *hub.Hub
	coord  *coord.Coordinator
	gw     *gateway.Gateway
	log    *zap.Logger
}

func newConnSession(connID string, h *hub.Hub, c *coord.Coordinator, gw *gateway.Gateway, log *zap.Logger) *connSession {
	return &connSession{connID: connID, hub: h, coord: c, gw: gw, log: log}
}

func (s *connSession) sendErr(code, message string) {
	s.gw.SendError(s.connID, code, message)
}

func (s *connSession) handle(ctx context.Context, m types.ClientMessage) {
	switch m.Type {
	case types.MsgJoin:
		s.handleJoin(ctx, m)
	case types.MsgLeave:
		s.handleLeave(ctx, m)
	case types.MsgVote:
		s.handleVote(ctx, m)
	case types.MsgReveal:
		s.handleReveal(ctx, m)
	case types.MsgReset:
		s.handleReset(ctx, m)
	default:
		s.sendErr(types.CodeValidationError, "unknown event type")
	}
}

func (s *connSession) handleJoin(ctx context.Context, m types.ClientMessage) {
	if m.RoomID == "" || m.MemberID == "" || m.Name == "" {
		s.sendErr(types.CodeValidationError, "join requires roomId, memberId and name")
		return
	}

	sess, err := s.hub.Lookup(ctx, m.RoomID)
	if err != nil {
		s.sendErr(types.CodeForError(err), "failed to join room")
		return
	}

	// Switching rooms on a live connection needs an explicit unbind first.
	if b, ok := s.coord.Binding(s.connID); ok && (b.RoomID != m.RoomID || b.MemberID != m.MemberID) {
		s.coord.Unbind(s.connID)
	}
	// Bind before the join so this connection sees its own join broadcast.
	if err := s.coord.Bind(s.connID, coord.Binding{RoomID: m.RoomID, MemberID: m.MemberID}); err != nil {
		s.sendErr(types.CodeUnauthorized, "connection already bound")
		return
	}

	if err := sess.Join(m.MemberID, m.Name); err != nil {
		s.coord.Unbind(s.connID)
		s.sendErr(types.CodeForError(err), "failed to join room")
		return
	}
	s.log.Info("member joined", zap.String("room", m.RoomID), zap.String("member", m.MemberID))
}

func (s *connSession) handleLeave(ctx context.Context, m types.ClientMessage) {
	if m.RoomID == "" {
		s.sendErr(types.CodeValidationError, "leave requires roomId")
		return
	}
	b, ok := s.coord.Binding(s.connID)
	if !ok || b.RoomID != m.RoomID {
		return
	}
	s.coord.Unbind(s.connID)

	sess, err := s.hub.Lookup(ctx, m.RoomID)
	if err != nil {
		s.sendErr(types.CodeForError(err), "failed to leave room")
		return
	}
	sess.Leave(b.MemberID)
	s.log.Info("member left", zap.String("room", m.RoomID), zap.String("member", b.MemberID))
}

func (s *connSession) handleVote(ctx context.Context, m types.ClientMessage) {
	if m.RoomID == "" || m.MemberID == "" || m.Vote == nil {
		s.sendErr(types.CodeValidationError, "vote requires roomId, memberId and vote")
		return
	}
	b, ok := s.coord.Binding(s.connID)
	if !ok || b.RoomID != m.RoomID || b.MemberID != m.MemberID {
		s.sendErr(types.CodeUnauthorized, "not bound to this room and member")
		return
	}

	sess, err := s.hub.Lookup(ctx, m.RoomID)
	if err != nil {
		s.sendErr(types.CodeForError(err), "failed to vote")
		return
	}
	if err := sess.Vote(m.MemberID, *m.Vote); err != nil {
		s.sendErr(types.CodeForError(err), "failed to vote")
	}
}

func (s *connSession) handleReveal(ctx context.Context, m types.ClientMessage) {
	if m.RoomID == "" {
		s.sendErr(types.CodeValidationError, "reveal requires roomId")
		return
	}
	b, ok := s.coord.Binding(s.connID)
	if !ok || b.RoomID != m.RoomID {
		s.sendErr(types.CodeUnauthorized, "not bound to this room")
		return
	}

	sess, err := s.hub.Lookup(ctx, m.RoomID)
	if err != nil {
		s.sendErr(types.CodeForError(err), "failed to reveal votes")
		return
	}
	if _, err := sess.Reveal(); err != nil {
		if errors.Is(err, store.ErrDatabase) {
			// Reveal already happened in memory and was broadcast; only the
			// score write failed.
			s.sendErr(types.CodeDatabaseError, "reveal succeeded, score not persisted")
			return
		}
		s.sendErr(types.CodeForError(err), "failed to reveal votes")
	}
}

func (s *connSession) handleReset(ctx context.Context, m types.ClientMessage) {
	if m.RoomID == "" {
		s.sendErr(types.CodeValidationError, "reset requires roomId")
		return
	}
	b, ok := s.coord.Binding(s.connID)
	if !ok || b.RoomID != m.RoomID {
		s.sendErr(types.CodeUnauthorized, "not bound to this room")
		return
	}

	sess, err := s.hub.Lookup(ctx, m.RoomID)
	if err != nil {
		s.sendErr(types.CodeForError(err), "failed to reset votes")
		return
	}
	sess.Reset()
}
