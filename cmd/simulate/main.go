// Command simulate runs a scenario for a number of rounds and reports the
// outcome. Telemetry can be recorded to compressed JSONL, served to live
// websocket viewers, and published to redis; aggregate results can be
// persisted to postgres or sqlite.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/efreeman/crossway/internal/config"
	"github.com/efreeman/crossway/internal/logger"
	"github.com/efreeman/crossway/internal/planner"
	"github.com/efreeman/crossway/internal/planner/neural"
	"github.com/efreeman/crossway/internal/results"
	"github.com/efreeman/crossway/internal/results/postgres"
	"github.com/efreeman/crossway/internal/results/sqlite"
	"github.com/efreeman/crossway/internal/sim"
	"github.com/efreeman/crossway/internal/telemetry"
)

func main() {
	var (
		configPath string
		rounds     int
		seed       int64
		workers    int
		recordDir  string
		liveAddr   string
		redisURL   string
		dbURL      string
		logLevel   string
		jsonOut    bool
	)

	flag.StringVar(&configPath, "config", "", "Scenario YAML file (required)")
	flag.IntVar(&rounds, "rounds", 5, "Number of rounds to run")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = derive from clock)")
	flag.IntVar(&workers, "workers", 0, "Planning concurrency (0 = GOMAXPROCS)")
	flag.StringVar(&recordDir, "record", "", "Directory for the telemetry recording (empty = off)")
	flag.StringVar(&liveAddr, "live", "", "Listen address for the live websocket viewer (empty = off)")
	flag.StringVar(&redisURL, "redis", "", "Redis URL to publish telemetry to (empty = off)")
	flag.StringVar(&dbURL, "db", "", "Results store: postgres:// URL or sqlite file path (empty = off)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flag.BoolVar(&jsonOut, "json", false, "Output the summary as JSON")
	flag.Parse()

	logger.Init(logLevel)

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "simulate: -config is required")
		flag.Usage()
		os.Exit(2)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Scenario read failed")
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Scenario invalid")
	}

	var pol planner.Policy
	if cfg.Search.Policy == "neural" {
		pol = neural.LoadOrHeuristic(cfg.Search.ModelPath)
	}
	pl, err := planner.New(sim.PlannerConfig(cfg, pol))
	if err != nil {
		log.Fatal().Err(err).Msg("Planner setup failed")
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	var sinks telemetry.MultiSink
	if recordDir != "" {
		rec, err := telemetry.NewRecorder(recordDir, &telemetry.Header{
			RunID:      runID,
			StartedAt:  startedAt,
			Seed:       seed,
			Rounds:     rounds,
			ConfigYAML: string(raw),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Recorder setup failed")
		}
		sinks = append(sinks, rec)
	}

	var viewer *telemetry.Server
	if liveAddr != "" {
		hub := telemetry.NewHub()
		viewer = telemetry.NewServer(liveAddr, hub)
		viewer.Start()
		log.Info().Str("addr", liveAddr).Msg("Live viewer listening on /watch")
		sinks = append(sinks, hub)
	}

	if redisURL != "" {
		pub, err := telemetry.NewPublisher(redisURL, runID)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis publisher setup failed")
		}
		sinks = append(sinks, pub)
	}

	var store results.Store
	if dbURL != "" {
		store, err = openStore(dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Results store setup failed")
		}
	}

	var sink telemetry.Sink
	if len(sinks) > 0 {
		sink = sinks
	}
	runner, err := sim.New(cfg, pl, sim.Options{
		RunID:   runID,
		Rounds:  rounds,
		Seed:    seed,
		Workers: workers,
		Sink:    sink,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Runner setup failed")
	}

	log.Info().
		Str("run_id", runID).
		Str("scenario", filepath.Base(configPath)).
		Str("policy", pl.Config().Policy.Name()).
		Int("rounds", rounds).
		Int64("seed", seed).
		Msg("Run starting")

	wallStart := time.Now()
	summary, runErr := runner.Run(ctx)
	wall := time.Since(wallStart)

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		log.Warn().Int("completed", len(summary.Results)).Msg("Run interrupted, reporting completed rounds")
	default:
		log.Error().Err(runErr).Msg("Run aborted")
	}

	// Close sinks before reporting so the recording is flushed even on an
	// aborted run.
	if len(sinks) > 0 {
		if cerr := sinks.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("Telemetry close failed")
		}
	}
	if viewer != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		if serr := viewer.Shutdown(sctx); serr != nil {
			log.Error().Err(serr).Msg("Viewer shutdown failed")
		}
		scancel()
	}

	if store != nil {
		saveResults(store, results.RunRow{
			ID:          runID,
			StartedAt:   startedAt,
			Scenario:    filepath.Base(configPath),
			Seed:        seed,
			Rounds:      len(summary.Results),
			Succeeded:   summary.Succeeded,
			Collided:    summary.Collided,
			TimedOut:    summary.TimedOut,
			SuccessRate: summary.SuccessRate(),
			WallMs:      wall.Milliseconds(),
		}, summary.Results)
		if cerr := store.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("Results store close failed")
		}
	}

	if jsonOut {
		printJSON(runID, seed, summary, wall)
	} else {
		printSummary(runID, seed, summary, wall)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// openStore picks a results backend from the URL shape: postgres for
// postgres:// URLs, sqlite for anything else (treated as a file path).
func openStore(dbURL string) (results.Store, error) {
	if strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://") {
		return postgres.Open(dbURL)
	}
	return sqlite.Open(dbURL)
}

func saveResults(store results.Store, run results.RunRow, rounds []sim.RoundResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.SaveRun(ctx, &run); err != nil {
		log.Error().Err(err).Msg("Run row save failed")
		return
	}
	rows := make([]results.RoundRow, len(rounds))
	for i, r := range rounds {
		rows[i] = results.RoundRow{
			RunID:   run.ID,
			Round:   r.Round,
			Outcome: r.Outcome.String(),
			Ticks:   r.Ticks,
			SimTime: r.SimTime,
			WallMs:  r.Wall.Milliseconds(),
		}
	}
	if err := store.SaveRounds(ctx, rows); err != nil {
		log.Error().Err(err).Msg("Round rows save failed")
		return
	}
	log.Info().Str("run_id", run.ID).Int("rounds", len(rows)).Msg("Results saved")
}

func printSummary(runID string, seed int64, s *sim.Summary, wall time.Duration) {
	fmt.Printf("run %s  seed %d\n\n", runID, seed)
	fmt.Printf("%-6s %-10s %6s %8s %8s\n", "round", "outcome", "ticks", "sim_s", "wall_ms")
	for _, r := range s.Results {
		fmt.Printf("%-6d %-10s %6d %8.2f %8d\n", r.Round, r.Outcome, r.Ticks, r.SimTime, r.Wall.Milliseconds())
	}
	fmt.Printf("\n%d/%d succeeded (%.0f%%), %d collided, %d timed out in %s\n",
		s.Succeeded, len(s.Results), s.SuccessRate()*100,
		s.Collided, s.TimedOut, wall.Round(time.Millisecond))
}

func printJSON(runID string, seed int64, s *sim.Summary, wall time.Duration) {
	type round struct {
		Round   int     `json:"round"`
		Outcome string  `json:"outcome"`
		Ticks   int     `json:"ticks"`
		SimTime float64 `json:"sim_time"`
		WallMs  int64   `json:"wall_ms"`
	}
	rounds := make([]round, len(s.Results))
	for i, r := range s.Results {
		rounds[i] = round{
			Round:   r.Round,
			Outcome: r.Outcome.String(),
			Ticks:   r.Ticks,
			SimTime: r.SimTime,
			WallMs:  r.Wall.Milliseconds(),
		}
	}
	out := struct {
		RunID       string  `json:"run_id"`
		Seed        int64   `json:"seed"`
		Rounds      int     `json:"rounds"`
		Succeeded   int     `json:"succeeded"`
		Collided    int     `json:"collided"`
		TimedOut    int     `json:"timed_out"`
		SuccessRate float64 `json:"success_rate"`
		WallMs      int64   `json:"wall_ms"`
		Results     []round `json:"results"`
	}{
		RunID:       runID,
		Seed:        seed,
		Rounds:      len(s.Results),
		Succeeded:   s.Succeeded,
		Collided:    s.Collided,
		TimedOut:    s.TimedOut,
		SuccessRate: s.SuccessRate(),
		WallMs:      wall.Milliseconds(),
		Results:     rounds,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
