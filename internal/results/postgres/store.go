// Package postgres persists run results to PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/efreeman/crossway/internal/results"
)

// Store writes run results through a PostgreSQL connection pool.
type Store struct {
	db *sql.DB
}

// Open connects, verifies the server responds, and ensures the schema.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool for use in tests.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			scenario TEXT NOT NULL,
			seed BIGINT NOT NULL,
			rounds INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			collided INTEGER NOT NULL,
			timed_out INTEGER NOT NULL,
			success_rate DOUBLE PRECISION NOT NULL,
			wall_ms BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			round INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			sim_time DOUBLE PRECISION NOT NULL,
			wall_ms BIGINT NOT NULL,
			PRIMARY KEY (run_id, round)
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun inserts the aggregate row for a run.
func (s *Store) SaveRun(ctx context.Context, run *results.RunRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, scenario, seed, rounds, succeeded, collided, timed_out, success_rate, wall_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.StartedAt, run.Scenario, run.Seed, run.Rounds,
		run.Succeeded, run.Collided, run.TimedOut, run.SuccessRate, run.WallMs,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// SaveRounds inserts one row per round in a single transaction. The run row
// must exist first.
func (s *Store) SaveRounds(ctx context.Context, rounds []results.RoundRow) error {
	if len(rounds) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save rounds: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rounds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rounds (run_id, round, outcome, ticks, sim_time, wall_ms)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			r.RunID, r.Round, r.Outcome, r.Ticks, r.SimTime, r.WallMs,
		); err != nil {
			return fmt.Errorf("save round %d: %w", r.Round, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save rounds: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]results.RunRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, scenario, seed, rounds, succeeded, collided, timed_out, success_rate, wall_ms
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []results.RunRow
	for rows.Next() {
		var r results.RunRow
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Scenario, &r.Seed, &r.Rounds,
			&r.Succeeded, &r.Collided, &r.TimedOut, &r.SuccessRate, &r.WallMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
