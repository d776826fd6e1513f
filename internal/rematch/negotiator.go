package rematch

import (
	"context"
	"sync"
	"time"

	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/park285/chess-relay-server/internal/room"
	"github.com/park285/chess-relay-server/internal/session"
	"github.com/park285/chess-relay-server/pkg/wsmsg"
	"go.uber.org/zap"
)

// Offer is a pending rematch proposal between an unordered pair of sessions.
type Offer struct {
	RequestedBy string
	CreatedAt   time.Time
}

// Negotiator runs the two-phase rematch handshake. Offers are keyed by the
// canonical (lexicographic) ordering of the pair, so at most one offer exists
// per pair regardless of who asked first.
type Negotiator struct {
	mu      sync.Mutex
	pending map[string]*Offer

	index    Index
	store    *room.Store
	registry *session.Registry
}

func NewNegotiator(index Index, store *room.Store, registry *session.Registry) *Negotiator {
	return &Negotiator{pending: make(map[string]*Offer), index: index, store: store, registry: registry}
}

// Request proposes a rematch against the session's last opponent. When the
// opponent already has an offer out for this pair, the request counts as
// acceptance and the new room starts immediately. No known opponent is a
// silent no-op.
func (n *Negotiator) Request(ctx context.Context, sessionID string) {
	opponentID := n.index.Opponent(ctx, sessionID)
	if opponentID == "" {
		obslog.L().Debug("rematch_no_opponent", zap.String("session_id", sessionID))
		return
	}
	if !n.registry.Exists(sessionID) || !n.registry.Exists(opponentID) {
		return
	}

	key := pairKey(sessionID, opponentID)
	n.mu.Lock()
	if offer, ok := n.pending[key]; ok && offer.RequestedBy == opponentID {
		// 상대가 이미 제안한 상태 → 이 요청은 수락으로 처리
		delete(n.pending, key)
		n.mu.Unlock()
		n.start(ctx, sessionID, opponentID)
		return
	}
	n.pending[key] = &Offer{RequestedBy: sessionID, CreatedAt: time.Now()}
	n.mu.Unlock()

	n.registry.Push(ctx, opponentID, wsmsg.NewRematchOffer())
	n.registry.Push(ctx, sessionID, wsmsg.NewRematchPending())
	obslog.L().Info("rematch_offer", zap.String("from", sessionID), zap.String("to", opponentID))
}

// Accept consumes a pending offer for the pair and starts the rematch. With no
// offer on file it degrades to Request, covering an accept sent before the
// offer was visible.
func (n *Negotiator) Accept(ctx context.Context, sessionID string) {
	opponentID := n.index.Opponent(ctx, sessionID)
	if opponentID == "" {
		return
	}
	key := pairKey(sessionID, opponentID)
	n.mu.Lock()
	if _, ok := n.pending[key]; !ok {
		n.mu.Unlock()
		n.Request(ctx, sessionID)
		return
	}
	delete(n.pending, key)
	n.mu.Unlock()
	n.start(ctx, sessionID, opponentID)
}

// Decline deletes any pending offer for the pair and tells the opponent, if
// still reachable.
func (n *Negotiator) Decline(ctx context.Context, sessionID string) {
	opponentID := n.index.Opponent(ctx, sessionID)
	if opponentID == "" {
		return
	}
	key := pairKey(sessionID, opponentID)
	n.mu.Lock()
	delete(n.pending, key)
	n.mu.Unlock()

	n.registry.Push(ctx, opponentID, wsmsg.NewRematchDeclined())
	obslog.L().Info("rematch_decline", zap.String("from", sessionID), zap.String("to", opponentID))
}

// PendingCount returns the number of outstanding offers.
func (n *Negotiator) PendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

func (n *Negotiator) start(ctx context.Context, requesterID, opponentID string) {
	if !n.registry.Exists(requesterID) || !n.registry.Exists(opponentID) {
		return
	}
	r := n.store.CreatePaired(ctx, requesterID, opponentID)
	obslog.L().Info("rematch_start",
		zap.String("room_id", r.ID),
		zap.String("white_id", requesterID),
		zap.String("black_id", opponentID),
	)
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}
