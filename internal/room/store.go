package room

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/chess-relay-server/internal/msgcat"
	"github.com/park285/chess-relay-server/internal/obslog"
	"github.com/park285/chess-relay-server/internal/session"
	"github.com/park285/chess-relay-server/pkg/wsmsg"
	"go.uber.org/zap"
)

// Store owns the room map. It is one synchronization boundary: every exported
// operation mutates the map and the affected room as a single atomic step, with
// deliveries going out after the lock is released.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room

	registry  *session.Registry
	cat       *msgcat.Catalog
	sink      ResultSink
	opponents Opponents
}

func NewStore(registry *session.Registry, cat *msgcat.Catalog) *Store {
	return &Store{rooms: make(map[string]*Room), registry: registry, cat: cat}
}

// AttachSink wires the result-persistence collaborator.
func (s *Store) AttachSink(sink ResultSink) {
	if s != nil {
		s.sink = sink
	}
}

// AttachOpponents wires the last-opponent index consulted by rematch.
func (s *Store) AttachOpponents(o Opponents) {
	if s != nil {
		s.opponents = o
	}
}

// CreatePaired seats two sessions into a fresh ACTIVE room, first as WHITE,
// second as BLACK, and notifies both of the game start.
func (s *Store) CreatePaired(ctx context.Context, whiteID, blackID string) *Room {
	r := &Room{
		ID: uuid.NewString(),
		Seats: []Seat{
			{SessionID: whiteID, Team: wsmsg.TeamWhite},
			{SessionID: blackID, Team: wsmsg.TeamBlack},
		},
		CurrentTurn: wsmsg.TeamWhite,
		TurnCount:   1,
		CreatedAt:   time.Now(),
		Status:      StatusActive,
	}
	s.mu.Lock()
	s.rooms[r.ID] = r
	s.mu.Unlock()

	s.registry.SetRoom(whiteID, r.ID)
	s.registry.SetRoom(blackID, r.ID)

	s.registry.Push(ctx, whiteID, wsmsg.NewGameStart(wsmsg.TeamWhite, true, r.ID))
	s.registry.Push(ctx, blackID, wsmsg.NewGameStart(wsmsg.TeamBlack, true, r.ID))

	obslog.L().Info("room_create",
		zap.String("room_id", r.ID),
		zap.String("white_id", whiteID),
		zap.String("black_id", blackID),
	)
	return r
}

// CreateSolo opens a WAITING room with the creator seated as WHITE and tells
// the creator the room id so it can be shared with an invitee.
func (s *Store) CreateSolo(ctx context.Context, creatorID string) *Room {
	r := &Room{
		ID:          uuid.NewString(),
		Seats:       []Seat{{SessionID: creatorID, Team: wsmsg.TeamWhite}},
		CurrentTurn: wsmsg.TeamWhite,
		TurnCount:   1,
		CreatedAt:   time.Now(),
		Status:      StatusWaiting,
	}
	s.mu.Lock()
	s.rooms[r.ID] = r
	s.mu.Unlock()

	s.registry.SetRoom(creatorID, r.ID)
	s.registry.Push(ctx, creatorID, wsmsg.NewRoomCreated(r.ID))

	obslog.L().Info("room_create_solo", zap.String("room_id", r.ID), zap.String("creator_id", creatorID))
	return r
}

// Join seats the session as BLACK, flips the room ACTIVE and replays the last
// known board to the joiner so a late joiner resumes mid-game.
func (s *Store) Join(ctx context.Context, roomID, sessionID string) error {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return ErrRoomNotFound
	}
	if len(r.Seats) >= 2 {
		s.mu.Unlock()
		return ErrRoomFull
	}
	if r.Status != StatusWaiting {
		// a single empty seat outside WAITING belongs to a departed
		// participant; only invite rooms accept a second player
		s.mu.Unlock()
		return ErrRoomNotFound
	}
	r.Seats = append(r.Seats, Seat{SessionID: sessionID, Team: wsmsg.TeamBlack})
	r.Status = StatusActive
	creatorID := r.Seats[0].SessionID
	board := r.Board
	currentTurn := r.CurrentTurn
	turns := r.TurnCount
	s.mu.Unlock()

	s.registry.SetRoom(sessionID, roomID)
	s.registry.Push(ctx, creatorID, wsmsg.NewGameStart(wsmsg.TeamWhite, true, roomID))
	s.registry.Push(ctx, sessionID, wsmsg.NewGameStart(wsmsg.TeamBlack, true, roomID))
	if board != nil {
		s.registry.Push(ctx, sessionID, wsmsg.NewSyncBoard(board, currentTurn, turns, creatorID))
	}

	obslog.L().Info("room_join", zap.String("room_id", roomID), zap.String("session_id", sessionID))
	return nil
}

// RelayBoard overwrites the room's board state and forwards the update to the
// opposing seat only. Unseated senders and vanished rooms are silent no-ops:
// the transport may deliver stale messages after a room ends.
func (s *Store) RelayBoard(ctx context.Context, fromID string, board json.RawMessage, currentTurn wsmsg.Team, turns int) {
	roomID, ok := s.registry.RoomOf(fromID)
	if !ok || roomID == "" {
		return
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok || !seated(r, fromID) {
		s.mu.Unlock()
		return
	}
	r.Board = board
	r.CurrentTurn = currentTurn
	r.TurnCount = turns
	opponent := other(r, fromID)
	s.mu.Unlock()

	if opponent != nil {
		s.registry.Push(ctx, opponent.SessionID, wsmsg.NewSyncBoard(board, currentTurn, turns, fromID))
	}
}

// RelayChat forwards a timestamped chat line to the opposing seat. Same silent
// no-op policy as RelayBoard.
func (s *Store) RelayChat(ctx context.Context, fromID, text string) {
	roomID, ok := s.registry.RoomOf(fromID)
	if !ok || roomID == "" {
		return
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok || !seated(r, fromID) {
		s.mu.Unlock()
		return
	}
	opponent := other(r, fromID)
	s.mu.Unlock()

	if opponent != nil {
		s.registry.Push(ctx, opponent.SessionID, wsmsg.NewChatMessage(fromID, text, time.Now().UnixMilli()))
	}
}

// DeclareOutcome ends the sender's room with a client-reported winner. The
// outcome is normalized to WHITE/BLACK/DRAW, both sessions' room associations
// are cleared before anyone is notified, everyone seated gets the gameOver
// notice, the pairing is recorded for rematch and the result is persisted
// best-effort. The room is gone afterwards and is never resurrected.
func (s *Store) DeclareOutcome(ctx context.Context, fromID, reportedWinner string) {
	roomID, ok := s.registry.RoomOf(fromID)
	if !ok || roomID == "" {
		return
	}
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok || !seated(r, fromID) {
		s.mu.Unlock()
		return
	}
	delete(s.rooms, roomID)
	r.Status = StatusEnded
	seats := append([]Seat(nil), r.Seats...)
	moves := r.TurnCount
	startedAt := r.CreatedAt
	s.mu.Unlock()

	winner := wsmsg.NormalizeWinner(reportedWinner)

	// 경주 방지: 알림을 보내기 전에 좌석 연결을 먼저 해제한다.
	for _, seat := range seats {
		s.registry.ClearRoom(seat.SessionID)
	}

	whiteID, blackID := teamIDs(seats)
	if len(seats) == 2 && s.opponents != nil {
		s.opponents.Record(ctx, seats[0].SessionID, seats[1].SessionID)
	}

	msgKey := "gameover.checkmate"
	if winner == wsmsg.TeamDraw {
		msgKey = "gameover.draw"
	}
	notice := wsmsg.NewGameOver(winner, s.cat.Text(msgKey))
	for _, seat := range seats {
		s.registry.Push(ctx, seat.SessionID, notice)
	}

	if whiteID != "" && blackID != "" {
		s.persist(ctx, &GameRecord{
			RoomID:     roomID,
			WhiteID:    whiteID,
			BlackID:    blackID,
			WinnerTeam: winner,
			Reason:     ReasonCheckmate,
			Moves:      moves,
			StartedAt:  startedAt,
			EndedAt:    time.Now(),
		})
	} else {
		obslog.L().Warn("result_skip", zap.String("room_id", roomID), zap.String("reason", "missing seat identity"))
	}

	obslog.L().Info("room_end",
		zap.String("room_id", roomID),
		zap.String("winner", string(winner)),
		zap.String("reason", ReasonCheckmate),
	)
}

// Depart removes the session from its room and reports what is left. When the
// room empties out it is deleted on the spot; with an opponent remaining the
// room enters GRACE and the caller owns the grace episode.
func (s *Store) Depart(roomID, sessionID string) *Departure {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	dep := &Departure{
		RoomID:    roomID,
		Moves:     r.TurnCount,
		StartedAt: r.CreatedAt,
	}
	dep.WhiteID, dep.BlackID = teamIDs(r.Seats)

	kept := r.Seats[:0]
	for _, seat := range r.Seats {
		if seat.SessionID == sessionID {
			dep.Departed = seat
			continue
		}
		kept = append(kept, seat)
	}
	if dep.Departed.SessionID == "" {
		return nil
	}
	r.Seats = kept

	if len(r.Seats) == 0 {
		delete(s.rooms, roomID)
		obslog.L().Info("room_delete", zap.String("room_id", roomID), zap.String("reason", "empty"))
		return dep
	}
	r.Status = StatusGrace
	remaining := r.Seats[0]
	dep.Remaining = &remaining
	return dep
}

// Reseat restores a departed participant's seat with its prior team and flips
// the room back to ACTIVE. Used by grace-period reconnection.
func (s *Store) Reseat(roomID string, seat Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if len(r.Seats) >= 2 {
		return ErrRoomFull
	}
	r.Seats = append(r.Seats, seat)
	r.Status = StatusActive
	return nil
}

// Close removes the room and returns its final snapshot, or nil when it is
// already gone.
func (s *Store) Close(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	delete(s.rooms, roomID)
	r.Status = StatusEnded
	return snapshot(r)
}

// Snapshot returns a copy of the room for inspection, or nil when missing.
func (s *Store) Snapshot(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return snapshot(r)
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// sweep deletes rooms left with zero participants past maxAge and refreshes the
// opponent index for rooms holding two. Returns the number of rooms removed.
func (s *Store) sweep(ctx context.Context, maxAge time.Duration) int {
	now := time.Now()
	var full [][2]string

	s.mu.Lock()
	removed := 0
	for id, r := range s.rooms {
		switch len(r.Seats) {
		case 0:
			if now.Sub(r.CreatedAt) > maxAge {
				delete(s.rooms, id)
				removed++
			}
		case 2:
			full = append(full, [2]string{r.Seats[0].SessionID, r.Seats[1].SessionID})
		}
	}
	s.mu.Unlock()

	if s.opponents != nil {
		for _, pair := range full {
			s.opponents.Record(ctx, pair[0], pair[1])
		}
	}
	if removed > 0 {
		obslog.L().Info("room_sweep", zap.Int("removed", removed))
	}
	return removed
}

func (s *Store) persist(ctx context.Context, rec *GameRecord) {
	if s.sink == nil {
		return
	}
	if err := s.sink.SaveResult(ctx, rec); err != nil {
		obslog.L().Error("result_persist_error", zap.String("room_id", rec.RoomID), zap.Error(err))
		return
	}
	obslog.L().Info("result_persist",
		zap.String("room_id", rec.RoomID),
		zap.String("winner", string(rec.WinnerTeam)),
		zap.String("reason", rec.Reason),
	)
}

func seated(r *Room, sessionID string) bool {
	for _, seat := range r.Seats {
		if seat.SessionID == sessionID {
			return true
		}
	}
	return false
}

func other(r *Room, sessionID string) *Seat {
	for i := range r.Seats {
		if r.Seats[i].SessionID != sessionID {
			seat := r.Seats[i]
			return &seat
		}
	}
	return nil
}

func teamIDs(seats []Seat) (whiteID, blackID string) {
	for _, seat := range seats {
		switch seat.Team {
		case wsmsg.TeamWhite:
			whiteID = seat.SessionID
		case wsmsg.TeamBlack:
			blackID = seat.SessionID
		}
	}
	return
}

func snapshot(r *Room) *Room {
	cp := *r
	cp.Seats = append([]Seat(nil), r.Seats...)
	return &cp
}
