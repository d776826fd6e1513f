package room

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/park285/chess-relay-server/pkg/wsmsg"
)

// Status represents a room lifecycle state.
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusActive  Status = "ACTIVE"
	StatusGrace   Status = "GRACE"
	StatusEnded   Status = "ENDED"
)

// Seat binds a session to a team for the lifetime of the room.
type Seat struct {
	SessionID string
	Team      wsmsg.Team
}

// Room is one active or recently active game. The board payload is opaque and
// relayed verbatim; the store never inspects it.
type Room struct {
	ID          string
	Seats       []Seat
	Board       json.RawMessage
	CurrentTurn wsmsg.Team
	TurnCount   int
	CreatedAt   time.Time
	Status      Status
}

// Departure is the snapshot taken when a participant leaves a room. Team and
// identity are captured at departure time because the registry entry may be
// gone by the time a grace period resolves.
type Departure struct {
	RoomID    string
	Departed  Seat
	Remaining *Seat
	WhiteID   string
	BlackID   string
	Moves     int
	StartedAt time.Time
}

// Reasons recorded with a final game result.
const (
	ReasonCheckmate  = "checkmate"
	ReasonDisconnect = "disconnect"
)

// GameRecord is the completed-game summary handed to the persistence collaborator.
type GameRecord struct {
	RoomID     string
	WhiteID    string
	BlackID    string
	WinnerTeam wsmsg.Team
	Reason     string
	Moves      int
	StartedAt  time.Time
	EndedAt    time.Time
}

// ResultSink persists completed-game summaries. Best-effort from the relay's
// perspective: failures are logged, never surfaced to players.
type ResultSink interface {
	SaveResult(ctx context.Context, rec *GameRecord) error
}

// Opponents records the most recent adversary relationship for rematch offers.
type Opponents interface {
	Record(ctx context.Context, a, b string)
}

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room already has two participants")
)
