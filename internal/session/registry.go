package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/chess-relay-server/internal/obslog"
	"go.uber.org/zap"
)

var (
	ErrDuplicateSession = errors.New("session id already registered")
	ErrSessionNotFound  = errors.New("session not found")
)

const sendTimeout = 5 * time.Second

type entry struct {
	conn   Conn
	roomID string
}

// Registry maps session identifiers to their live connection handle and
// current room. It is one synchronization boundary: every method is a single
// atomic step with respect to the session map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// Register binds a fresh session id to a connection. Registering an id that is
// already live fails with ErrDuplicateSession; reconnection goes through Rebind.
func (r *Registry) Register(id string, c Conn) error {
	if id == "" || c == nil {
		return errors.New("invalid session registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return ErrDuplicateSession
	}
	r.sessions[id] = &entry{conn: c}
	return nil
}

// Rebind replaces the connection handle of an existing session without touching
// its room association. This is the reconnection primitive.
func (r *Registry) Rebind(id string, c Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	e.conn = c
	return nil
}

// Unregister drops the session. Idempotent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Exists reports whether the id is currently registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	_, ok := r.sessions[id]
	r.mu.RUnlock()
	return ok
}

// RoomOf returns the session's current room id ("" when unseated) and whether
// the session exists at all.
func (r *Registry) RoomOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	return e.roomID, true
}

// SetRoom records the session's room association. Missing sessions are ignored:
// a participant may already be gone when a room seats or clears it.
func (r *Registry) SetRoom(id, roomID string) {
	r.mu.Lock()
	if e, ok := r.sessions[id]; ok {
		e.roomID = roomID
	}
	r.mu.Unlock()
}

// ClearRoom removes the session's room association.
func (r *Registry) ClearRoom(id string) {
	r.SetRoom(id, "")
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Push delivers a payload to the session's connection, fire-and-forget: a
// missing session or a dead handle only logs and drops the message.
func (r *Registry) Push(ctx context.Context, id string, v any) {
	r.mu.RLock()
	var c Conn
	if e, ok := r.sessions[id]; ok {
		c = e.conn
	}
	r.mu.RUnlock()
	if c == nil {
		obslog.L().Debug("push_drop", zap.String("session_id", id), zap.String("reason", "no session"))
		return
	}
	dctx := ctx
	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, sendTimeout)
		defer cancel()
	}
	if err := c.Send(dctx, v); err != nil {
		obslog.L().Warn("push_error", zap.String("session_id", id), zap.Error(err))
	}
}
