package grace

import (
	"context"
	"sync"
	"time"

	"github.com/park285/chess-relay-server/internal/msgcat"
	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/park285/chess-relay-server/internal/room"
	"github.com/park285/chess-relay-server/internal/session"
	"github.com/park285/chess-relay-server/pkg/wsmsg"
	"go.uber.org/zap"
)

// episode is one grace period for one departed session. resolved is the single
// authoritative flag: whichever of reconnection or expiry flips it first wins,
// the other becomes a no-op.
type episode struct {
	sessionID  string
	roomID     string
	team       wsmsg.Team
	opponentID string

	// identity snapshot taken at disconnect time; the departed session's
	// registry entry may be gone by the time the timer fires
	whiteID   string
	blackID   string
	moves     int
	startedAt time.Time

	timer    *time.Timer
	resolved bool
}

// Controller arms a bounded timer when a participant disconnects from a room
// that still has an opponent, and resolves each episode exactly once: either
// the same session reconnects in time and is re-seated, or the remaining
// participant wins by forfeit.
type Controller struct {
	mu       sync.Mutex
	episodes map[string]*episode // departed sessionID → episode

	store     *room.Store
	registry  *session.Registry
	opponents room.Opponents
	sink      room.ResultSink
	cat       *msgcat.Catalog
	period    time.Duration
}

func NewController(store *room.Store, registry *session.Registry, cat *msgcat.Catalog, period time.Duration) *Controller {
	return &Controller{
		episodes: make(map[string]*episode),
		store:    store,
		registry: registry,
		cat:      cat,
		period:   period,
	}
}

// AttachSink wires the result-persistence collaborator for forfeits.
func (c *Controller) AttachSink(sink room.ResultSink) {
	if c != nil {
		c.sink = sink
	}
}

// AttachOpponents wires the last-opponent index updated on forfeits.
func (c *Controller) AttachOpponents(o room.Opponents) {
	if c != nil {
		c.opponents = o
	}
}

// Begin opens a grace episode for the departure: the remaining participant is
// told the opponent dropped, and the forfeit timer is armed.
func (c *Controller) Begin(ctx context.Context, dep *room.Departure) {
	if dep == nil || dep.Remaining == nil {
		return
	}
	ep := &episode{
		sessionID:  dep.Departed.SessionID,
		roomID:     dep.RoomID,
		team:       dep.Departed.Team,
		opponentID: dep.Remaining.SessionID,
		whiteID:    dep.WhiteID,
		blackID:    dep.BlackID,
		moves:      dep.Moves,
		startedAt:  dep.StartedAt,
	}
	c.mu.Lock()
	c.episodes[ep.sessionID] = ep
	ep.timer = time.AfterFunc(c.period, func() { c.expire(context.Background(), ep) })
	c.mu.Unlock()

	c.registry.Push(ctx, ep.opponentID, wsmsg.NewOpponentDisconnected())
	obslog.L().Info("grace_begin",
		zap.String("room_id", ep.roomID),
		zap.String("session_id", ep.sessionID),
		zap.Duration("period", c.period),
	)
}

// TryResolve attempts the reconnection path for a session presenting a known
// identifier on a fresh connection. It reports true when the episode was won:
// the prior seat is restored, the registry is rebound to the new connection and
// both sides are notified. After expiry (or with no episode at all) it reports
// false and the caller treats the connection as a fresh session.
func (c *Controller) TryResolve(ctx context.Context, sessionID string, conn session.Conn) bool {
	c.mu.Lock()
	ep, ok := c.episodes[sessionID]
	if !ok || ep.resolved {
		c.mu.Unlock()
		return false
	}
	ep.resolved = true
	ep.timer.Stop()
	delete(c.episodes, sessionID)
	c.mu.Unlock()

	if err := c.store.Reseat(ep.roomID, room.Seat{SessionID: sessionID, Team: ep.team}); err != nil {
		// room collapsed while the episode was pending; nothing to resume
		c.registry.Unregister(sessionID)
		obslog.L().Warn("grace_reseat_failed", zap.String("room_id", ep.roomID), zap.Error(err))
		return false
	}
	if err := c.registry.Rebind(sessionID, conn); err != nil {
		// registry entry kept through grace, so this should not happen
		obslog.L().Error("grace_rebind_failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	c.registry.SetRoom(sessionID, ep.roomID)

	c.registry.Push(ctx, ep.opponentID, wsmsg.NewOpponentReconnected())
	c.registry.Push(ctx, sessionID, wsmsg.NewGameStart(ep.team, true, ep.roomID))
	if snap := c.store.Snapshot(ep.roomID); snap != nil && snap.Board != nil {
		c.registry.Push(ctx, sessionID, wsmsg.NewSyncBoard(snap.Board, snap.CurrentTurn, snap.TurnCount, ep.opponentID))
	}

	obslog.L().Info("grace_reconnect", zap.String("room_id", ep.roomID), zap.String("session_id", sessionID))
	return true
}

// Pending reports whether sessionID has an unresolved grace episode.
func (c *Controller) Pending(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep, ok := c.episodes[sessionID]
	return ok && !ep.resolved
}

// Count returns the number of open episodes.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.episodes)
}

// Shutdown cancels all pending timers. Episodes are abandoned, not forfeited.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ep := range c.episodes {
		ep.resolved = true
		ep.timer.Stop()
		delete(c.episodes, id)
	}
}

func (c *Controller) expire(ctx context.Context, ep *episode) {
	c.mu.Lock()
	if ep.resolved {
		c.mu.Unlock()
		return
	}
	ep.resolved = true
	delete(c.episodes, ep.sessionID)
	c.mu.Unlock()

	rm := c.store.Close(ep.roomID)
	if rm == nil {
		// opponent left as well and the room is already gone
		c.registry.Unregister(ep.sessionID)
		return
	}

	winner := ep.team.Opposite()
	if len(rm.Seats) == 1 {
		winner = rm.Seats[0].Team
	}

	c.registry.ClearRoom(ep.opponentID)
	c.registry.Push(ctx, ep.opponentID, wsmsg.NewGameOver(winner, c.cat.Text("gameover.forfeit_win")))
	// the departed side is usually unreachable by now; Push only logs the drop
	c.registry.Push(ctx, ep.sessionID, wsmsg.NewGameOver(winner, c.cat.Text("gameover.forfeit_loss")))
	c.registry.Unregister(ep.sessionID)

	if c.opponents != nil {
		if ep.whiteID != "" && ep.blackID != "" {
			c.opponents.Record(ctx, ep.whiteID, ep.blackID)
		} else {
			c.opponents.Record(ctx, ep.opponentID, ep.sessionID)
		}
	}

	if c.sink != nil && ep.whiteID != "" && ep.blackID != "" {
		rec := &room.GameRecord{
			RoomID:     ep.roomID,
			WhiteID:    ep.whiteID,
			BlackID:    ep.blackID,
			WinnerTeam: winner,
			Reason:     room.ReasonDisconnect,
			Moves:      ep.moves,
			StartedAt:  ep.startedAt,
			EndedAt:    time.Now(),
		}
		if err := c.sink.SaveResult(ctx, rec); err != nil {
			obslog.L().Error("result_persist_error", zap.String("room_id", ep.roomID), zap.Error(err))
		}
	}

	obslog.L().Info("grace_forfeit",
		zap.String("room_id", ep.roomID),
		zap.String("session_id", ep.sessionID),
		zap.String("winner", string(winner)),
	)
}
