package match

import (
	"context"
	"sync"

	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/park285/chess-relay-server/internal/room"
	"github.com/park285/chess-relay-server/internal/session"
	"github.com/park285/chess-relay-server/pkg/wsmsg"
	"go.uber.org/zap"
)

// Queue is the FIFO waiting list for random matchmaking. Arrival order is the
// sole fairness rule: whenever two or more sessions wait, the two oldest are
// paired into a room, first as WHITE.
type Queue struct {
	mu      sync.Mutex
	waiting []string

	store    *room.Store
	registry *session.Registry
}

func NewQueue(store *room.Store, registry *session.Registry) *Queue {
	return &Queue{store: store, registry: registry}
}

// Enqueue adds the session to the waiting list and pairs immediately when an
// opponent is available. Re-enqueueing while already queued is a no-op.
func (q *Queue) Enqueue(ctx context.Context, sessionID string) {
	q.mu.Lock()
	for _, id := range q.waiting {
		if id == sessionID {
			q.mu.Unlock()
			obslog.L().Debug("queue_duplicate", zap.String("session_id", sessionID))
			return
		}
	}
	q.waiting = append(q.waiting, sessionID)
	var white, black string
	if len(q.waiting) >= 2 {
		white, black = q.waiting[0], q.waiting[1]
		q.waiting = append(q.waiting[:0], q.waiting[2:]...)
	}
	q.mu.Unlock()

	q.registry.Push(ctx, sessionID, wsmsg.NewEnterMatchmaking())
	obslog.L().Info("queue_enter", zap.String("session_id", sessionID))

	if white != "" {
		q.store.CreatePaired(ctx, white, black)
	}
}

// Withdraw removes the session from the waiting list if present. A session
// already claimed by a pairing is simply no longer there, so a concurrent
// withdraw degrades to a no-op and the pairing stands.
func (q *Queue) Withdraw(sessionID string) {
	q.mu.Lock()
	for i, id := range q.waiting {
		if id == sessionID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			q.mu.Unlock()
			obslog.L().Info("queue_leave", zap.String("session_id", sessionID))
			return
		}
	}
	q.mu.Unlock()
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}
