// Package coord tracks live connections: which (room, member) pair each one
// currently represents, and the grace window that absorbs short disconnects.
// A dropped connection does not evict its member immediately; eviction only
// happens if no connection has re-bound to the same pair when the grace
// timer fires. Membership after a disconnect is eventually accurate, not
// immediately accurate, on purpose.
package coord

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/pkg/types"
)

// ErrAlreadyBound is returned when a connection tries to bind to a second
// (room, member) pair without unbinding first.
var ErrAlreadyBound = errors.New("connection already bound")

// Binding is the (room, member) pair a connection represents.
type Binding struct {
	RoomID   string
	MemberID string
}

type client struct {
	outbox  chan types.ServerEvent
	binding Binding
	bound   bool
}

// DepartureFunc is invoked when a member's grace window expires without a
// reconnect. Wired to the session's Leave by the caller.
type DepartureFunc func(roomID, memberID string)

type Coordinator struct {
	mu     sync.RWMutex
	conns  map[string]*client
	grace  time.Duration
	depart DepartureFunc
	log    *zap.Logger
}

func New(grace time.Duration, log *zap.Logger) *Coordinator {
	return &Coordinator{
		conns: make(map[string]*client),
		grace: grace,
		log:   log,
	}
}

// SetDepartureHandler must be called before any connection disconnects.
func (c *Coordinator) SetDepartureHandler(fn DepartureFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.depart = fn
}

// Register adds a connection and its outbox before it has joined anything.
func (c *Coordinator) Register(connID string, outbox chan types.ServerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[connID] = &client{outbox: outbox}
}

// Bind records the (room, member) pair for a registered connection.
// Rebinding the same pair is idempotent; a different pair requires an
// explicit Unbind first.
func (c *Coordinator) Bind(connID string, b Binding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.conns[connID]
	if !ok {
		return errors.New("connection not registered")
	}
	if cl.bound && cl.binding != b {
		return ErrAlreadyBound
	}
	cl.binding = b
	cl.bound = true
	return nil
}

// Unbind clears the binding but keeps the connection registered. Idempotent.
func (c *Coordinator) Unbind(connID string) (Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.conns[connID]
	if !ok || !cl.bound {
		return Binding{}, false
	}
	prev := cl.binding
	cl.binding = Binding{}
	cl.bound = false
	return prev, true
}

// Binding returns the pair the connection currently represents.
func (c *Coordinator) Binding(connID string) (Binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.conns[connID]
	if !ok || !cl.bound {
		return Binding{}, false
	}
	return cl.binding, true
}

// MemberConnected reports whether any live connection is bound to the pair.
func (c *Coordinator) MemberConnected(roomID, memberID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cl := range c.conns {
		if cl.bound && cl.binding.RoomID == roomID && cl.binding.MemberID == memberID {
			return true
		}
	}
	return false
}

// RoomOutboxes returns the outbox of every connection bound to the room.
func (c *Coordinator) RoomOutboxes(roomID string) []chan types.ServerEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []chan types.ServerEvent
	for _, cl := range c.conns {
		if cl.bound && cl.binding.RoomID == roomID {
			out = append(out, cl.outbox)
		}
	}
	return out
}

// Outbox returns the connection's outbox whether or not it is bound, so
// errors can reach a connection that never managed to join.
func (c *Coordinator) Outbox(connID string) (chan types.ServerEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.conns[connID]
	if !ok {
		return nil, false
	}
	return cl.outbox, true
}

// Disconnected removes the connection and, if it was bound, arms the grace
// timer. Removing the map entry up front makes a racing second disconnect
// for the same connection a silent no-op, so the timer fires at most once.
// The timer's action is conditioned on the binding state at fire time: a new
// connection binding the same pair before expiry suppresses the eviction.
func (c *Coordinator) Disconnected(connID string) {
	c.mu.Lock()
	cl, ok := c.conns[connID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.conns, connID)
	b, bound := cl.binding, cl.bound
	depart := c.depart
	c.mu.Unlock()

	if !bound {
		return
	}

	c.log.Info("connection lost, holding membership through grace window",
		zap.String("room", b.RoomID), zap.String("member", b.MemberID),
		zap.Duration("grace", c.grace))

	time.AfterFunc(c.grace, func() {
		if c.MemberConnected(b.RoomID, b.MemberID) {
			c.log.Info("member reconnected within grace window",
				zap.String("room", b.RoomID), zap.String("member", b.MemberID))
			return
		}
		c.log.Info("grace window expired, removing member",
			zap.String("room", b.RoomID), zap.String("member", b.MemberID))
		if depart != nil {
			depart(b.RoomID, b.MemberID)
		}
	})
}
