package gamestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/chess-relay-server/internal/room"
)

// Repository persists completed-game summaries to Postgres. Implements
// room.ResultSink.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the games table if it is missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const q = `CREATE TABLE IF NOT EXISTS games (
        id BIGSERIAL PRIMARY KEY,
        room_id TEXT,
        white_id TEXT NOT NULL,
        black_id TEXT NOT NULL,
        winner_team TEXT CHECK (winner_team IN ('WHITE','BLACK','DRAW')),
        reason TEXT,
        moves INTEGER NOT NULL DEFAULT 0,
        started_at TIMESTAMPTZ,
        ended_at TIMESTAMPTZ,
        duration_ms BIGINT
    )`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// SaveResult inserts one final game summary.
func (r *Repository) SaveResult(ctx context.Context, rec *room.GameRecord) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	const q = `INSERT INTO games (
        room_id, white_id, black_id, winner_team, reason, moves, started_at, ended_at, duration_ms
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.db.ExecContext(ctx, q,
		rec.RoomID,
		rec.WhiteID, rec.BlackID,
		string(rec.WinnerTeam), rec.Reason, rec.Moves,
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}
