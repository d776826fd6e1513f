package rematch

import (
	"context"
	"sync"
	"testing"

	"github.com/park285/chess-relay-server/internal/msgcat"
	"github.com/park285/chess-relay-server/internal/room"
	"github.com/park285/chess-relay-server/internal/session"
	"github.com/park285/chess-relay-server/pkg/wsmsg"
)

type fakeConn struct {
	mu   sync.Mutex
	sent []any
}

func (f *fakeConn) Send(_ context.Context, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeConn) notices(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.sent {
		if n, ok := m.(wsmsg.Notice); ok && n.Type == kind {
			count++
		}
	}
	return count
}

func newTestNegotiator(t *testing.T) (*Negotiator, *room.Store, *session.Registry) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	reg := session.NewRegistry()
	store := room.NewStore(reg, cat)
	idx := NewMemoryIndex()
	idx.Record(context.Background(), "a", "b")
	return NewNegotiator(idx, store, reg), store, reg
}

func register(t *testing.T, reg *session.Registry, id string) *fakeConn {
	t.Helper()
	c := &fakeConn{}
	if err := reg.Register(id, c); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return c
}

func TestRequestNotifiesBothSides(t *testing.T) {
	n, store, reg := newTestNegotiator(t)
	a := register(t, reg, "a")
	b := register(t, reg, "b")

	n.Request(context.Background(), "a")

	if b.notices("rematchOffer") != 1 {
		t.Fatalf("opponent got no offer")
	}
	if a.notices("rematchPending") != 1 {
		t.Fatalf("requester got no pending ack")
	}
	if n.PendingCount() != 1 || store.Count() != 0 {
		t.Fatalf("pending=%d rooms=%d", n.PendingCount(), store.Count())
	}
}

func TestCrossingRequestsStartExactlyOneRoom(t *testing.T) {
	n, store, reg := newTestNegotiator(t)
	register(t, reg, "a")
	register(t, reg, "b")
	ctx := context.Background()

	n.Request(ctx, "a")
	n.Request(ctx, "b")

	if store.Count() != 1 {
		t.Fatalf("rooms = %d, want 1", store.Count())
	}
	if n.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", n.PendingCount())
	}
	ra, _ := reg.RoomOf("a")
	rb, _ := reg.RoomOf("b")
	if ra == "" || ra != rb {
		t.Fatalf("pair not in one room: a=%q b=%q", ra, rb)
	}
}

func TestAcceptConsumesOffer(t *testing.T) {
	n, store, reg := newTestNegotiator(t)
	register(t, reg, "a")
	register(t, reg, "b")
	ctx := context.Background()

	n.Request(ctx, "a")
	n.Accept(ctx, "b")

	if store.Count() != 1 || n.PendingCount() != 0 {
		t.Fatalf("rooms=%d pending=%d", store.Count(), n.PendingCount())
	}
}

func TestAcceptWithoutOfferDegradesToRequest(t *testing.T) {
	n, store, reg := newTestNegotiator(t)
	register(t, reg, "a")
	b := register(t, reg, "b")

	n.Accept(context.Background(), "a")

	if store.Count() != 0 {
		t.Fatalf("room started without a counterpart")
	}
	if n.PendingCount() != 1 || b.notices("rematchOffer") != 1 {
		t.Fatalf("accept did not degrade to a fresh offer")
	}
}

func TestDeclineClearsOfferAndNotifies(t *testing.T) {
	n, store, reg := newTestNegotiator(t)
	a := register(t, reg, "a")
	register(t, reg, "b")
	ctx := context.Background()

	n.Request(ctx, "a")
	n.Decline(ctx, "b")

	if n.PendingCount() != 0 {
		t.Fatalf("offer survived decline")
	}
	if a.notices("rematchDeclined") != 1 {
		t.Fatalf("requester not told about decline")
	}
	// a later accept finds nothing and re-offers instead of starting a room
	n.Accept(ctx, "a")
	if store.Count() != 0 || n.PendingCount() != 1 {
		t.Fatalf("declined offer resurrected: rooms=%d pending=%d", store.Count(), n.PendingCount())
	}
}

func TestRequestWithoutKnownOpponentIsNoop(t *testing.T) {
	n, store, reg := newTestNegotiator(t)
	register(t, reg, "stranger")

	n.Request(context.Background(), "stranger")

	if n.PendingCount() != 0 || store.Count() != 0 {
		t.Fatalf("no-opponent request had effects")
	}
}

func TestRequestAgainstGoneOpponentIsNoop(t *testing.T) {
	n, _, reg := newTestNegotiator(t)
	register(t, reg, "a")
	// "b" never connects in this session

	n.Request(context.Background(), "a")

	if n.PendingCount() != 0 {
		t.Fatalf("offer created against a disconnected opponent")
	}
}
