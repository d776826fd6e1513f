package relay

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/park285/chess-relay-server/internal/grace"
	"github.com/park285/chess-relay-server/internal/match"
	"github.com/park285/chess-relay-server/internal/msgcat"
	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/park285/chess-relay-server/internal/rematch"
	"github.com/park285/chess-relay-server/internal/room"
	"github.com/park285/chess-relay-server/internal/session"
	"github.com/park285/chess-relay-server/pkg/wsmsg"
	"go.uber.org/zap"
)

// Hub owns the managers and routes every transport event — connection opened,
// message received, connection closed — to the right one. Each registry keeps
// its own synchronization boundary; the hub itself holds no lock.
type Hub struct {
	registry *session.Registry
	rooms    *room.Store
	queue    *match.Queue
	rematch  *rematch.Negotiator
	grace    *grace.Controller
	cat      *msgcat.Catalog
}

func NewHub(registry *session.Registry, rooms *room.Store, queue *match.Queue, neg *rematch.Negotiator, gc *grace.Controller, cat *msgcat.Catalog) *Hub {
	return &Hub{registry: registry, rooms: rooms, queue: queue, rematch: neg, grace: gc, cat: cat}
}

// HandleConnect registers a fresh connection and returns the session id the
// caller must use for all further events. A requested id with a pending grace
// episode takes the reconnection path; a requested id that is still live is
// disambiguated with a fresh one rather than hijacking the existing session.
func (h *Hub) HandleConnect(ctx context.Context, requestedID string, conn session.Conn) string {
	id := strings.TrimSpace(requestedID)
	if id != "" {
		if h.grace.TryResolve(ctx, id, conn) {
			h.registry.Push(ctx, id, wsmsg.NewConnected(id))
			return id
		}
		if h.registry.Exists(id) {
			obslog.L().Warn("session_id_collision", zap.String("requested_id", id))
			id = ""
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	if err := h.registry.Register(id, conn); err != nil {
		// collision with a just-registered id; take a fresh one
		id = uuid.NewString()
		_ = h.registry.Register(id, conn)
	}
	h.registry.Push(ctx, id, wsmsg.NewConnected(id))
	obslog.L().Info("session_connect", zap.String("session_id", id))
	return id
}

// HandleDisconnect runs the departure lifecycle: leave the queue, leave the
// room, and either drop the session immediately or open a grace episode when
// an opponent is still seated.
func (h *Hub) HandleDisconnect(ctx context.Context, sessionID string) {
	h.queue.Withdraw(sessionID)

	roomID, ok := h.registry.RoomOf(sessionID)
	if !ok {
		// already removed, e.g. superseded by a grace resolution
		return
	}
	if roomID == "" {
		h.registry.Unregister(sessionID)
		obslog.L().Info("session_disconnect", zap.String("session_id", sessionID))
		return
	}

	dep := h.rooms.Depart(roomID, sessionID)
	if dep == nil || dep.Remaining == nil {
		h.registry.Unregister(sessionID)
		obslog.L().Info("session_disconnect", zap.String("session_id", sessionID), zap.String("room_id", roomID))
		return
	}

	// keep the registry entry (with its stale handle) so the room reference
	// survives until the grace episode resolves one way or the other
	h.grace.Begin(ctx, dep)
}

// HandleMessage dispatches one inbound payload by its declared type.
func (h *Hub) HandleMessage(ctx context.Context, sessionID string, in *wsmsg.Inbound) {
	switch in.Type {
	case wsmsg.TypeMatchmaking:
		if h.rejectSeated(ctx, sessionID) {
			return
		}
		h.queue.Enqueue(ctx, sessionID)
	case wsmsg.TypeLeaveMatchmaking:
		h.queue.Withdraw(sessionID)
	case wsmsg.TypeCreate:
		if h.rejectSeated(ctx, sessionID) {
			return
		}
		h.rooms.CreateSolo(ctx, sessionID)
	case wsmsg.TypeJoin:
		if h.rejectSeated(ctx, sessionID) {
			return
		}
		if err := h.rooms.Join(ctx, in.RoomID, sessionID); err != nil {
			h.registry.Push(ctx, sessionID, wsmsg.NewError(h.joinErrorText(err)))
		}
	case wsmsg.TypeSyncBoard:
		h.rooms.RelayBoard(ctx, sessionID, in.Board, in.CurrentTurn, in.Turns)
	case wsmsg.TypeChat:
		h.rooms.RelayChat(ctx, sessionID, in.Text)
	case wsmsg.TypeCheckmate:
		h.rooms.DeclareOutcome(ctx, sessionID, in.Winner)
	case wsmsg.TypeRematchRequest:
		h.rematch.Request(ctx, sessionID)
	case wsmsg.TypeRematchAccept:
		h.rematch.Accept(ctx, sessionID)
	case wsmsg.TypeRematchDecline:
		h.rematch.Decline(ctx, sessionID)
	default:
		obslog.L().Debug("unknown_message_type", zap.String("session_id", sessionID), zap.String("type", in.Type))
		h.registry.Push(ctx, sessionID, wsmsg.NewError(h.cat.Text("error.unknown_type")))
	}
}

// rejectSeated refuses game-entry messages from a session that already holds a
// seat. A session lives in at most one room; leaving happens by disconnecting
// or by the game ending, never by joining elsewhere.
func (h *Hub) rejectSeated(ctx context.Context, sessionID string) bool {
	roomID, ok := h.registry.RoomOf(sessionID)
	if !ok || roomID == "" {
		return false
	}
	obslog.L().Debug("already_in_room", zap.String("session_id", sessionID), zap.String("room_id", roomID))
	h.registry.Push(ctx, sessionID, wsmsg.NewError(h.cat.Text("error.already_in_room")))
	return true
}

func (h *Hub) joinErrorText(err error) string {
	switch err {
	case room.ErrRoomNotFound:
		return h.cat.Text("error.room_not_found")
	case room.ErrRoomFull:
		return h.cat.Text("error.room_full")
	}
	return err.Error()
}

// Snapshot is the ops view exposed over /stats.
type Snapshot struct {
	Sessions       int `json:"sessions"`
	Rooms          int `json:"rooms"`
	QueueDepth     int `json:"queueDepth"`
	PendingRematch int `json:"pendingRematch"`
	GraceEpisodes  int `json:"graceEpisodes"`
}

// Stats gathers counts from each registry under its own lock.
func (h *Hub) Stats() Snapshot {
	return Snapshot{
		Sessions:       h.registry.Count(),
		Rooms:          h.rooms.Count(),
		QueueDepth:     h.queue.Len(),
		PendingRematch: h.rematch.PendingCount(),
		GraceEpisodes:  h.grace.Count(),
	}
}
