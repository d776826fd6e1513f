package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/park285/chess-relay-server/internal/msgcat"
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

func (f *fakeConn) messages() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.sent...)
}

type fakeSink struct {
	mu      sync.Mutex
	records []*GameRecord
}

func (f *fakeSink) SaveResult(_ context.Context, rec *GameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

type fakeOpponents struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (f *fakeOpponents) Record(_ context.Context, a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs = append(f.pairs, [2]string{a, b})
}

func newTestStore(t *testing.T) (*Store, *session.Registry) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	reg := session.NewRegistry()
	return NewStore(reg, cat), reg
}

func register(t *testing.T, reg *session.Registry, id string) *fakeConn {
	t.Helper()
	c := &fakeConn{}
	if err := reg.Register(id, c); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return c
}

func gameStarts(c *fakeConn) []wsmsg.GameStart {
	var out []wsmsg.GameStart
	for _, m := range c.messages() {
		if gs, ok := m.(wsmsg.GameStart); ok {
			out = append(out, gs)
		}
	}
	return out
}

func gameOvers(c *fakeConn) []wsmsg.GameOver {
	var out []wsmsg.GameOver
	for _, m := range c.messages() {
		if g, ok := m.(wsmsg.GameOver); ok {
			out = append(out, g)
		}
	}
	return out
}

func syncBoards(c *fakeConn) []wsmsg.SyncBoard {
	var out []wsmsg.SyncBoard
	for _, m := range c.messages() {
		if sb, ok := m.(wsmsg.SyncBoard); ok {
			out = append(out, sb)
		}
	}
	return out
}

func TestCreatePairedNotifiesBothSeats(t *testing.T) {
	store, reg := newTestStore(t)
	white := register(t, reg, "w")
	black := register(t, reg, "b")

	r := store.CreatePaired(context.Background(), "w", "b")
	if r.Status != StatusActive {
		t.Fatalf("expected ACTIVE, got %s", r.Status)
	}

	ws, bs := gameStarts(white), gameStarts(black)
	if len(ws) != 1 || ws[0].YourTeam != wsmsg.TeamWhite {
		t.Fatalf("white gameStart wrong: %+v", ws)
	}
	if len(bs) != 1 || bs[0].YourTeam != wsmsg.TeamBlack {
		t.Fatalf("black gameStart wrong: %+v", bs)
	}
	if roomID, _ := reg.RoomOf("w"); roomID != r.ID {
		t.Fatalf("white room assoc = %q, want %q", roomID, r.ID)
	}
	if store.Count() != 1 {
		t.Fatalf("room count = %d", store.Count())
	}
}

func TestJoinResumesWithBoardReplay(t *testing.T) {
	store, reg := newTestStore(t)
	register(t, reg, "creator")
	joiner := register(t, reg, "joiner")

	r := store.CreateSolo(context.Background(), "creator")
	// board update while nobody else is seated must not break anything
	board := json.RawMessage(`{"fen":"after-e4"}`)
	store.RelayBoard(context.Background(), "creator", board, wsmsg.TeamBlack, 2)

	if err := store.Join(context.Background(), r.ID, "joiner"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	js := gameStarts(joiner)
	if len(js) != 1 || js[0].YourTeam != wsmsg.TeamBlack {
		t.Fatalf("joiner gameStart wrong: %+v", js)
	}
	sb := syncBoards(joiner)
	if len(sb) != 1 || string(sb[0].Board) != string(board) || sb[0].CurrentTurn != wsmsg.TeamBlack {
		t.Fatalf("joiner board replay wrong: %+v", sb)
	}
}

func TestJoinErrors(t *testing.T) {
	store, reg := newTestStore(t)
	register(t, reg, "w")
	register(t, reg, "b")
	register(t, reg, "late")

	if err := store.Join(context.Background(), "nope", "late"); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	r := store.CreatePaired(context.Background(), "w", "b")
	if err := store.Join(context.Background(), r.ID, "late"); err != ErrRoomFull {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
}

func TestJoinRejectsRoomInGrace(t *testing.T) {
	store, reg := newTestStore(t)
	register(t, reg, "w")
	register(t, reg, "b")
	register(t, reg, "stranger")
	r := store.CreatePaired(context.Background(), "w", "b")

	if dep := store.Depart(r.ID, "w"); dep == nil || dep.Remaining == nil {
		t.Fatalf("unexpected departure: %+v", dep)
	}
	if err := store.Join(context.Background(), r.ID, "stranger"); err != ErrRoomNotFound {
		t.Fatalf("grace room join = %v, want ErrRoomNotFound", err)
	}

	snap := store.Snapshot(r.ID)
	if snap == nil || snap.Status != StatusGrace || len(snap.Seats) != 1 {
		t.Fatalf("grace room disturbed by join attempt: %+v", snap)
	}
	// the departed seat is still restorable
	if err := store.Reseat(r.ID, Seat{SessionID: "w", Team: wsmsg.TeamWhite}); err != nil {
		t.Fatalf("Reseat after rejected join: %v", err)
	}
	if snap := store.Snapshot(r.ID); snap.Status != StatusActive || len(snap.Seats) != 2 {
		t.Fatalf("room not restored: %+v", snap)
	}
}

func TestRelayBoardGoesToOpponentOnly(t *testing.T) {
	store, reg := newTestStore(t)
	white := register(t, reg, "w")
	black := register(t, reg, "b")
	store.CreatePaired(context.Background(), "w", "b")

	board := json.RawMessage(`{"fen":"x"}`)
	store.RelayBoard(context.Background(), "w", board, wsmsg.TeamBlack, 2)

	if got := syncBoards(black); len(got) != 1 || got[0].FromPlayer != "w" || got[0].Turns != 2 {
		t.Fatalf("opponent sync wrong: %+v", got)
	}
	if got := syncBoards(white); len(got) != 0 {
		t.Fatalf("sender must not receive its own sync: %+v", got)
	}
}

func TestRelayFromUnseatedSenderIsNoop(t *testing.T) {
	store, reg := newTestStore(t)
	white := register(t, reg, "w")
	black := register(t, reg, "b")
	r := store.CreatePaired(context.Background(), "w", "b")

	if dep := store.Depart(r.ID, "w"); dep == nil || dep.Remaining == nil {
		t.Fatalf("unexpected departure result: %+v", dep)
	}
	before := len(black.messages())
	store.RelayBoard(context.Background(), "w", json.RawMessage(`{}`), wsmsg.TeamWhite, 3)
	store.RelayChat(context.Background(), "w", "hi")
	if len(black.messages()) != before {
		t.Fatalf("departed sender still relayed")
	}
	_ = white
}

func TestDeclareOutcomeNormalizesUnknownWinner(t *testing.T) {
	store, reg := newTestStore(t)
	white := register(t, reg, "w")
	black := register(t, reg, "b")
	sink := &fakeSink{}
	opp := &fakeOpponents{}
	store.AttachSink(sink)
	store.AttachOpponents(opp)
	store.CreatePaired(context.Background(), "w", "b")

	store.DeclareOutcome(context.Background(), "w", "STALEMATE")

	for _, c := range []*fakeConn{white, black} {
		got := gameOvers(c)
		if len(got) != 1 || got[0].Winner != wsmsg.TeamDraw {
			t.Fatalf("gameOver wrong: %+v", got)
		}
	}
	if store.Count() != 0 {
		t.Fatalf("room survived outcome")
	}
	if roomID, _ := reg.RoomOf("w"); roomID != "" {
		t.Fatalf("room assoc not cleared: %q", roomID)
	}
	if len(sink.records) != 1 || sink.records[0].WinnerTeam != wsmsg.TeamDraw || sink.records[0].Reason != ReasonCheckmate {
		t.Fatalf("record wrong: %+v", sink.records)
	}
	if len(opp.pairs) != 1 {
		t.Fatalf("opponent pairing not recorded: %+v", opp.pairs)
	}
}

func TestDeclareOutcomeTwiceIsNoop(t *testing.T) {
	store, reg := newTestStore(t)
	white := register(t, reg, "w")
	register(t, reg, "b")
	store.CreatePaired(context.Background(), "w", "b")

	store.DeclareOutcome(context.Background(), "w", "WHITE")
	store.DeclareOutcome(context.Background(), "w", "BLACK")

	if got := gameOvers(white); len(got) != 1 || got[0].Winner != wsmsg.TeamWhite {
		t.Fatalf("expected single WHITE gameOver, got %+v", got)
	}
}

func TestDepartLastSeatDeletesRoom(t *testing.T) {
	store, reg := newTestStore(t)
	register(t, reg, "w")
	register(t, reg, "b")
	r := store.CreatePaired(context.Background(), "w", "b")

	dep := store.Depart(r.ID, "w")
	if dep == nil || dep.Remaining == nil || dep.Remaining.SessionID != "b" {
		t.Fatalf("first departure wrong: %+v", dep)
	}
	if snap := store.Snapshot(r.ID); snap == nil || snap.Status != StatusGrace {
		t.Fatalf("room should be in grace: %+v", snap)
	}

	dep = store.Depart(r.ID, "b")
	if dep == nil || dep.Remaining != nil {
		t.Fatalf("second departure wrong: %+v", dep)
	}
	if store.Count() != 0 {
		t.Fatalf("empty room not deleted")
	}
	if store.Depart(r.ID, "b") != nil {
		t.Fatalf("departing a deleted room must return nil")
	}
}

func TestSweepRemovesAgedEmptyRooms(t *testing.T) {
	store, reg := newTestStore(t)
	register(t, reg, "w")
	register(t, reg, "b")
	opp := &fakeOpponents{}
	store.AttachOpponents(opp)
	store.CreatePaired(context.Background(), "w", "b")

	// an orphaned room as left behind by an interrupted teardown
	store.mu.Lock()
	store.rooms["stale"] = &Room{ID: "stale", CreatedAt: time.Now().Add(-time.Hour)}
	store.rooms["young"] = &Room{ID: "young", CreatedAt: time.Now()}
	store.mu.Unlock()

	if removed := store.sweep(context.Background(), 10*time.Minute); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if store.Count() != 2 {
		t.Fatalf("count = %d, want 2", store.Count())
	}
	if len(opp.pairs) != 1 {
		t.Fatalf("full room should refresh opponent index: %+v", opp.pairs)
	}
}
