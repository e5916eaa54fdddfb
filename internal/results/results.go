// Package results defines the rows a simulation run persists and the store
// interface the CLIs write through. Concrete stores live in the postgres and
// sqlite subpackages.
package results

import (
	"context"
	"time"
)

// RunRow is the aggregate outcome of one simulation run.
type RunRow struct {
	ID          string
	StartedAt   time.Time
	Scenario    string
	Seed        int64
	Rounds      int
	Succeeded   int
	Collided    int
	TimedOut    int
	SuccessRate float64
	WallMs      int64
}

// RoundRow is the outcome of a single round within a run.
type RoundRow struct {
	RunID   string
	Round   int
	Outcome string
	Ticks   int
	SimTime float64
	WallMs  int64
}

// Store persists run outcomes.
type Store interface {
	SaveRun(ctx context.Context, run *RunRow) error
	SaveRounds(ctx context.Context, rounds []RoundRow) error
	RecentRuns(ctx context.Context, limit int) ([]RunRow, error)
	Close() error
}
