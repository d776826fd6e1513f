package rematch

import (
	"context"
	"sync"
)

// Index is the last-opponent lookup: a symmetric mapping from a session to its
// most recent adversary, written when a room ends and consulted only here.
type Index interface {
	// Record stores a↔b as each other's most recent opponent.
	Record(ctx context.Context, a, b string)
	// Opponent returns the most recent adversary of id, or "" when unknown.
	Opponent(ctx context.Context, id string) string
}

// MemoryIndex is the default in-process implementation. Loss on restart is
// accepted: it only disables rematch offers.
type MemoryIndex struct {
	mu   sync.RWMutex
	last map[string]string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{last: make(map[string]string)}
}

func (m *MemoryIndex) Record(_ context.Context, a, b string) {
	if a == "" || b == "" {
		return
	}
	m.mu.Lock()
	m.last[a] = b
	m.last[b] = a
	m.mu.Unlock()
}

func (m *MemoryIndex) Opponent(_ context.Context, id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last[id]
}
