// Package hub is the room directory: a read-through cache from room code to
// its running session actor. Once cached, the session is authoritative for
// the life of the process.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/internal/room"
	"github.com/planpoker/planning-poker-backend/internal/session"
	"github.com/planpoker/planning-poker-backend/internal/store"
)

var ErrRoomNotFound = errors.New("room not found")

const codeLength = 6
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type hubMsg interface{ isHubMsg() }

type getMsg struct {
	id    string
	reply chan *session.Session
}

type installMsg struct {
	rec   store.RoomRecord
	reply chan *session.Session
}

type shutdownMsg struct{}

func (getMsg) isHubMsg()      {}
func (installMsg) isHubMsg()  {}
func (shutdownMsg) isHubMsg() {}

type Hub struct {
	inbox    chan hubMsg
	sessions map[string]*session.Session
	store    store.Store
	bcast    session.Broadcaster
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, st store.Store, b session.Broadcaster, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan hubMsg, 64),
		sessions: make(map[string]*session.Session),
		store:    st,
		bcast:    b,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

// The loop only touches the map. Store I/O happens in the wrapper methods so
// a slow load never stalls unrelated rooms.
func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch m := m.(type) {
			case getMsg:
				m.reply <- h.sessions[m.id] // may be nil

			case installMsg:
				if s := h.sessions[m.rec.ID]; s != nil {
					// A racing load got here first. The cached session may
					// already hold members, so it wins.
					m.reply <- s
					break
				}
				rm := room.New(m.rec.ID, m.rec.Title, m.rec.MaxMembers)
				rm.RunningScore = m.rec.RunningScore
				rm.CreatedAt = m.rec.CreatedAt
				rm.UpdatedAt = m.rec.UpdatedAt
				s := session.New(h.ctx, rm, h.store, h.bcast, h.log)
				h.sessions[m.rec.ID] = s
				m.reply <- s

			case shutdownMsg:
				for _, s := range h.sessions {
					s.Shutdown()
				}
				clear(h.sessions)
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) get(id string) *session.Session {
	reply := make(chan *session.Session, 1)
	h.inbox <- getMsg{id: id, reply: reply}
	return <-reply
}

func (h *Hub) install(rec store.RoomRecord) *session.Session {
	reply := make(chan *session.Session, 1)
	h.inbox <- installMsg{rec: rec, reply: reply}
	return <-reply
}

// Create allocates a fresh room code, persists the record and starts its
// session.
func (h *Hub) Create(ctx context.Context, title string, maxMembers int) (*session.Session, error) {
	var id string
	for {
		c, err := generateCode()
		if err != nil {
			return nil, err
		}
		if h.get(c) == nil {
			id = c
			break
		}
		h.log.Info("room code collision, regenerating", zap.String("code", c))
	}

	rec, err := h.store.CreateRoom(ctx, id, title, maxMembers)
	if err != nil {
		return nil, err
	}
	return h.install(rec), nil
}

// Lookup resolves a room code: cached session first, then a load from the
// store. Concurrent lookups for the same uncached code may both hit the
// store; the loads carry identical persisted state and only one session ends
// up cached.
func (h *Hub) Lookup(ctx context.Context, id string) (*session.Session, error) {
	if s := h.get(id); s != nil {
		return s, nil
	}
	rec, ok, err := h.store.FindRoomByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomNotFound
	}
	return h.install(rec), nil
}

// CleanupEmptyRooms is a deliberate no-op. Rooms live for the lifetime of
// the process and the store; eviction of empty rooms is disabled on purpose
// and must stay that way.
func (h *Hub) CleanupEmptyRooms() int {
	return 0
}

func (h *Hub) Shutdown() {
	h.inbox <- shutdownMsg{}
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}
