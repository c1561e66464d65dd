// internal/store/results.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wallwars/wallwars/engine"
)

// ErrNotFound is returned when no result is stored for a game.
var ErrNotFound = errors.New("game result not found")

// DB is the subset of *pgxpool.Pool used by Results.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GameResult is the stored summary of a finished game.
type GameResult struct {
	GameID    uuid.UUID                `json:"gameId"`
	Config    engine.GameConfiguration `json:"config"`
	Status    engine.Status            `json:"status"`
	Winner    engine.PlayerID          `json:"winner"`
	Reason    engine.ResultReason      `json:"reason"`
	Moves     []string                 `json:"moves"`
	StartedAt time.Time                `json:"startedAt"`
	EndedAt   time.Time                `json:"endedAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
	game_id    UUID PRIMARY KEY,
	config     JSONB NOT NULL,
	status     TEXT NOT NULL,
	winner     SMALLINT NOT NULL,
	reason     TEXT NOT NULL,
	moves      JSONB NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL
)`

const upsertResult = `
INSERT INTO game_results (game_id, config, status, winner, reason, moves, started_at, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (game_id) DO UPDATE SET
	status = EXCLUDED.status,
	winner = EXCLUDED.winner,
	reason = EXCLUDED.reason,
	moves = EXCLUDED.moves,
	ended_at = EXCLUDED.ended_at`

const selectResult = `
SELECT config, status, winner, reason, moves, started_at, ended_at
FROM game_results WHERE game_id = $1`

// Results persists finished games in Postgres.
type Results struct {
	db DB
}

// NewResults wraps db.
func NewResults(db DB) *Results {
	return &Results{db: db}
}

// EnsureSchema creates the results table if it is missing.
func (r *Results) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create game_results: %w", err)
	}
	return nil
}

// SaveResult writes res, replacing any earlier row for the same game.
func (r *Results) SaveResult(ctx context.Context, res GameResult) error {
	cfg, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	moves := res.Moves
	if moves == nil {
		moves = []string{}
	}
	movesJSON, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("encode moves: %w", err)
	}
	_, err = r.db.Exec(ctx, upsertResult,
		res.GameID, cfg, string(res.Status), int16(res.Winner), string(res.Reason),
		movesJSON, res.StartedAt, res.EndedAt)
	if err != nil {
		return fmt.Errorf("save result for game %s: %w", res.GameID, err)
	}
	return nil
}

// LoadResult reads the stored result for gameID.
func (r *Results) LoadResult(ctx context.Context, gameID uuid.UUID) (GameResult, error) {
	res := GameResult{GameID: gameID}
	var (
		cfg, moves     []byte
		status, reason string
		winner         int16
	)
	err := r.db.QueryRow(ctx, selectResult, gameID).
		Scan(&cfg, &status, &winner, &reason, &moves, &res.StartedAt, &res.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GameResult{}, ErrNotFound
	}
	if err != nil {
		return GameResult{}, fmt.Errorf("load result for game %s: %w", gameID, err)
	}
	if err := json.Unmarshal(cfg, &res.Config); err != nil {
		return GameResult{}, fmt.Errorf("decode config: %w", err)
	}
	if err := json.Unmarshal(moves, &res.Moves); err != nil {
		return GameResult{}, fmt.Errorf("decode moves: %w", err)
	}
	res.Status = engine.Status(status)
	res.Winner = engine.PlayerID(winner)
	res.Reason = engine.ResultReason(reason)
	return res, nil
}

// FromState summarizes a finished state. startedAt is in unix ms.
func FromState(gameID uuid.UUID, st *engine.GameState, startedAt int64, endedAt time.Time) GameResult {
	res := GameResult{
		GameID:    gameID,
		Config:    st.Config,
		Status:    st.Status,
		StartedAt: time.UnixMilli(startedAt).UTC(),
		EndedAt:   endedAt.UTC(),
		Moves:     make([]string, 0, len(st.History)),
	}
	if st.Result != nil {
		res.Winner = st.Result.Winner
		res.Reason = st.Result.Reason
	}
	for _, h := range st.History {
		res.Moves = append(res.Moves, h.Notation)
	}
	return res
}
