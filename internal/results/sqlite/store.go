// Package sqlite persists run results to a local SQLite file, for runs on
// machines without a PostgreSQL server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/efreeman/crossway/internal/results"
)

// Store writes run results through a single SQLite connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database file and ensures the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			scenario TEXT NOT NULL,
			seed INTEGER NOT NULL,
			rounds INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			collided INTEGER NOT NULL,
			timed_out INTEGER NOT NULL,
			success_rate REAL NOT NULL,
			wall_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			round INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			sim_time REAL NOT NULL,
			wall_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, round)
		);`,
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Scenario, run.Seed, run.Rounds,
		run.Succeeded, run.Collided, run.TimedOut, run.SuccessRate, run.WallMs,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// SaveRounds inserts one row per round in a single transaction.
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
			 VALUES (?, ?, ?, ?, ?, ?)`,
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
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []results.RunRow
	for rows.Next() {
		var r results.RunRow
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Scenario, &r.Seed, &r.Rounds,
			&r.Succeeded, &r.Collided, &r.TimedOut, &r.SuccessRate, &r.WallMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
