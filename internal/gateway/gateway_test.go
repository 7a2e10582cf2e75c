package gateway

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/planpoker/planning-poker-backend/internal/coord"
	"github.com/planpoker/planning-poker-backend/internal/room"
	"github.com/planpoker/planning-poker-backend/pkg/types"
)

func recvEvent(t *testing.T, ch <-chan types.ServerEvent, within time.Duration) types.ServerEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return types.ServerEvent{} // unreachable
	}
}

func recvNoEvent(t *testing.T, ch <-chan types.ServerEvent, within time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("expected no event, got %+v", ev)
	case <-time.After(within):
	}
}

func setup(t *testing.T) (*coord.Coordinator, *Gateway) {
	t.Helper()
	c := coord.New(time.Second, zap.NewNop())
	return c, New(c, zap.NewNop())
}

func TestBroadcastReachesOnlyBoundRoom(t *testing.T) {
	c, g := setup(t)

	out1 := make(chan types.ServerEvent, 4)
	out2 := make(chan types.ServerEvent, 4)
	c.Register("c1", out1)
	c.Register("c2", out2)
	if err := c.Bind("c1", coord.Binding{RoomID: "R1", MemberID: "m1"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := c.Bind("c2", coord.Binding{RoomID: "R2", MemberID: "m2"}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	g.MemberLeft("R1", "m9")

	ev := recvEvent(t, out1, 100*time.Millisecond)
	if ev.Type != types.EvtMemberLeft {
		t.Fatalf("event type = %q, want %q", ev.Type, types.EvtMemberLeft)
	}
	recvNoEvent(t, out2, 50*time.Millisecond)
}

func TestUnboundConnectionReceivesNothing(t *testing.T) {
	c, g := setup(t)

	out := make(chan types.ServerEvent, 4)
	c.Register("c1", out)
	// Registered but never bound: in-grace reconnect catches up via its own
	// rejoin, not via replay.
	g.RoomState("R1", room.Snapshot{ID: "R1"})
	recvNoEvent(t, out, 50*time.Millisecond)
}

func TestVoteCastCarriesNoValue(t *testing.T) {
	c, g := setup(t)

	out := make(chan types.ServerEvent, 4)
	c.Register("c1", out)
	if err := c.Bind("c1", coord.Binding{RoomID: "R1", MemberID: "m1"}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	g.VoteCast("R1", "m1")
	ev := recvEvent(t, out, 100*time.Millisecond)
	p, ok := ev.Payload.(types.VoteCastPayload)
	if !ok {
		t.Fatalf("payload type %T", ev.Payload)
	}
	if !p.HasVoted || p.MemberID != "m1" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestSendErrorTargetsSingleConnection(t *testing.T) {
	c, g := setup(t)

	out1 := make(chan types.ServerEvent, 4)
	out2 := make(chan types.ServerEvent, 4)
	c.Register("c1", out1)
	c.Register("c2", out2)

	g.SendError("c1", types.CodeValidationError, "bad event")

	ev := recvEvent(t, out1, 100*time.Millisecond)
	if ev.Type != types.EvtError {
		t.Fatalf("event type = %q", ev.Type)
	}
	p := ev.Payload.(types.ErrorPayload)
	if p.Code != types.CodeValidationError {
		t.Fatalf("code = %q", p.Code)
	}
	recvNoEvent(t, out2, 50*time.Millisecond)
}

func TestFullOutboxDropsEventNotConnection(t *testing.T) {
	c, g := setup(t)

	out := make(chan types.ServerEvent, 1)
	c.Register("c1", out)
	if err := c.Bind("c1", coord.Binding{RoomID: "R1", MemberID: "m1"}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	g.MemberLeft("R1", "a")
	g.MemberLeft("R1", "b") // outbox full, dropped

	ev := recvEvent(t, out, 100*time.Millisecond)
	p := ev.Payload.(types.MemberLeftPayload)
	if p.MemberID != "a" {
		t.Fatalf("first event = %+v", p)
	}
	recvNoEvent(t, out, 50*time.Millisecond)

	// The connection is still bound; later events flow again.
	g.MemberLeft("R1", "c")
	ev = recvEvent(t, out, 100*time.Millisecond)
	if ev.Payload.(types.MemberLeftPayload).MemberID != "c" {
		t.Fatalf("later event = %+v", ev.Payload)
	}
}
