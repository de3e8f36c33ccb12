// Package database archives finished matches to postgres. The archive is
// optional: with no database configured DB stays nil and callers skip
// the write, since live play never depends on postgres.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared connection pool, nil when no database is configured.
var DB *pgxpool.Pool

// Connect initializes the pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pgx ping: %w", err)
	}
	DB = pool
	return nil
}

// Close shuts down the pool.
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}

// EnsureSchema creates the archive table if missing. The schema is small
// enough that migrations would be ceremony.
func EnsureSchema(ctx context.Context) error {
	_, err := DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_results (
			room_id      TEXT PRIMARY KEY,
			winner_seat  INT NOT NULL,
			rounds       INT NOT NULL,
			balances     JSONB NOT NULL,
			finished_at  TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// GameResult is the archived outcome of one finished match.
type GameResult struct {
	RoomID     string
	WinnerSeat int
	Rounds     int
	// Balances maps public seat id to final coin balance.
	Balances   map[int]int
	FinishedAt time.Time
}

// SaveResult upserts a finished match. Idempotent on room id, so a
// re-delivered game-over does no harm.
func SaveResult(ctx context.Context, res GameResult) error {
	balances, err := json.Marshal(res.Balances)
	if err != nil {
		return fmt.Errorf("marshal balances: %w", err)
	}
	_, err = DB.Exec(ctx, `
		INSERT INTO game_results (room_id, winner_seat, rounds, balances, finished_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id) DO UPDATE SET
			winner_seat = EXCLUDED.winner_seat,
			rounds      = EXCLUDED.rounds,
			balances    = EXCLUDED.balances,
			finished_at = EXCLUDED.finished_at`,
		res.RoomID, res.WinnerSeat, res.Rounds, balances, res.FinishedAt)
	return err
}
