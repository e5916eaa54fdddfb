// Command runs lists recent simulation runs from a results store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/efreeman/crossway/internal/logger"
	"github.com/efreeman/crossway/internal/results"
	"github.com/efreeman/crossway/internal/results/postgres"
	"github.com/efreeman/crossway/internal/results/sqlite"
)

func main() {
	var (
		dbURL    string
		limit    int
		jsonOut  bool
		logLevel string
	)

	flag.StringVar(&dbURL, "db", "", "Results store: postgres:// URL or sqlite file path (required)")
	flag.IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	flag.BoolVar(&jsonOut, "json", false, "Output the runs as JSON")
	flag.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flag.Parse()

	logger.Init(logLevel)

	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "runs: -db is required")
		flag.Usage()
		os.Exit(2)
	}

	store, err := openStore(dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Results store setup failed")
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := store.RecentRuns(ctx, limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Run listing failed")
	}

	if jsonOut {
		printJSON(rows)
	} else {
		printTable(rows)
	}
}

func openStore(dbURL string) (results.Store, error) {
	if strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://") {
		return postgres.Open(dbURL)
	}
	return sqlite.Open(dbURL)
}

func printTable(rows []results.RunRow) {
	if len(rows) == 0 {
		fmt.Println("no runs recorded")
		return
	}
	fmt.Printf("%-20s %-36s %-24s %6s %8s %8s\n",
		"started", "run_id", "scenario", "rounds", "success", "wall_ms")
	for _, r := range rows {
		fmt.Printf("%-20s %-36s %-24s %6d %7.0f%% %8d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.ID, r.Scenario,
			r.Rounds, r.SuccessRate*100, r.WallMs)
	}
}

func printJSON(rows []results.RunRow) {
	type run struct {
		ID          string    `json:"id"`
		StartedAt   time.Time `json:"started_at"`
		Scenario    string    `json:"scenario"`
		Seed        int64     `json:"seed"`
		Rounds      int       `json:"rounds"`
		Succeeded   int       `json:"succeeded"`
		Collided    int       `json:"collided"`
		TimedOut    int       `json:"timed_out"`
		SuccessRate float64   `json:"success_rate"`
		WallMs      int64     `json:"wall_ms"`
	}
	out := make([]run, len(rows))
	for i, r := range rows {
		out[i] = run{
			ID:          r.ID,
			StartedAt:   r.StartedAt,
			Scenario:    r.Scenario,
			Seed:        r.Seed,
			Rounds:      r.Rounds,
			Succeeded:   r.Succeeded,
			Collided:    r.Collided,
			TimedOut:    r.TimedOut,
			SuccessRate: r.SuccessRate,
			WallMs:      r.WallMs,
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
