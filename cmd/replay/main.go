// Command replay inspects a recorded telemetry stream. By default it prints
// the recording's summary; with -verify it re-runs the embedded scenario
// with the recorded seed and checks that the simulation reproduces the
// recorded tick stream exactly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/efreeman/crossway/internal/config"
	"github.com/efreeman/crossway/internal/logger"
	"github.com/efreeman/crossway/internal/planner"
	"github.com/efreeman/crossway/internal/planner/neural"
	"github.com/efreeman/crossway/internal/sim"
	"github.com/efreeman/crossway/internal/telemetry"
)

// eps bounds the acceptable numeric drift per field. JSON round-trips
// float64 exactly, so any real divergence shows up far above this.
const eps = 1e-9

func main() {
	var (
		file     string
		verify   bool
		jsonOut  bool
		logLevel string
	)

	flag.StringVar(&file, "file", "", "Recorded .jsonl.zst telemetry file (required)")
	flag.BoolVar(&verify, "verify", false, "Re-run the embedded scenario and compare tick streams")
	flag.BoolVar(&jsonOut, "json", false, "Output the summary as JSON")
	flag.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flag.Parse()

	logger.Init(logLevel)

	if file == "" {
		fmt.Fprintln(os.Stderr, "replay: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	rec, err := telemetry.LoadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Recording load failed")
	}

	if verify {
		if err := verifyRecording(rec); err != nil {
			fmt.Printf("FAIL: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("OK: %d ticks across %d rounds reproduced\n", len(rec.Ticks), len(rec.Rounds))
		return
	}

	if jsonOut {
		printJSON(rec)
	} else {
		printSummary(file, rec)
	}
}

// verifyRecording re-runs the recording's scenario from its embedded
// configuration and seed, then compares the committed tick streams.
func verifyRecording(rec *telemetry.Log) error {
	cfg, err := config.Parse([]byte(rec.Header.ConfigYAML))
	if err != nil {
		return fmt.Errorf("embedded scenario invalid: %w", err)
	}

	var pol planner.Policy
	if cfg.Search.Policy == "neural" {
		pol = neural.LoadOrHeuristic(cfg.Search.ModelPath)
	}
	pl, err := planner.New(sim.PlannerConfig(cfg, pol))
	if err != nil {
		return fmt.Errorf("planner setup: %w", err)
	}

	sink := &telemetry.MemorySink{}
	runner, err := sim.New(cfg, pl, sim.Options{
		RunID:  rec.Header.RunID,
		Rounds: rec.Header.Rounds,
		Seed:   rec.Header.Seed,
		Sink:   sink,
	})
	if err != nil {
		return fmt.Errorf("runner setup: %w", err)
	}
	if _, err := runner.Run(context.Background()); err != nil {
		return fmt.Errorf("re-run: %w", err)
	}

	return compareTicks(rec, sink)
}

func compareTicks(rec *telemetry.Log, replay *telemetry.MemorySink) error {
	if len(replay.Ticks) != len(rec.Ticks) {
		return fmt.Errorf("tick count differs: recorded %d, replayed %d", len(rec.Ticks), len(replay.Ticks))
	}
	for i := range rec.Ticks {
		a, b := &rec.Ticks[i], &replay.Ticks[i]
		if a.Round != b.Round || a.Tick != b.Tick {
			return fmt.Errorf("record %d: position differs: recorded round %d tick %d, replayed round %d tick %d",
				i, a.Round, a.Tick, b.Round, b.Tick)
		}
		if len(a.Vehicles) != len(b.Vehicles) {
			return fmt.Errorf("round %d tick %d: vehicle count differs: %d vs %d",
				a.Round, a.Tick, len(a.Vehicles), len(b.Vehicles))
		}
		for j := range a.Vehicles {
			if err := compareVehicle(&a.Vehicles[j], &b.Vehicles[j]); err != nil {
				return fmt.Errorf("round %d tick %d: %w", a.Round, a.Tick, err)
			}
		}
	}
	for i := range rec.Rounds {
		if i >= len(replay.Rounds) {
			return fmt.Errorf("round %d missing from replay", rec.Rounds[i].Round)
		}
		a, b := rec.Rounds[i], replay.Rounds[i]
		if a.Outcome != b.Outcome || a.Ticks != b.Ticks {
			return fmt.Errorf("round %d: outcome differs: recorded %s/%d ticks, replayed %s/%d ticks",
				a.Round, a.Outcome, a.Ticks, b.Outcome, b.Ticks)
		}
	}
	return nil
}

func compareVehicle(a, b *telemetry.VehicleTick) error {
	if a.ID != b.ID || a.Level != b.Level {
		return fmt.Errorf("vehicle identity differs: %s level %d vs %s level %d",
			a.ID, a.Level, b.ID, b.Level)
	}
	if a.Action != b.Action || a.AtGoal != b.AtGoal || a.Fallback != b.Fallback {
		return fmt.Errorf("vehicle %s: decision differs: %s/%v/%v vs %s/%v/%v",
			a.ID, a.Action, a.AtGoal, a.Fallback, b.Action, b.AtGoal, b.Fallback)
	}
	if !near(a.X, b.X) || !near(a.Y, b.Y) || !near(a.Heading, b.Heading) || !near(a.Speed, b.Speed) {
		return fmt.Errorf("vehicle %s: state differs: (%v, %v, %v, %v) vs (%v, %v, %v, %v)",
			a.ID, a.X, a.Y, a.Heading, a.Speed, b.X, b.Y, b.Heading, b.Speed)
	}
	return nil
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= eps
}

func printSummary(file string, rec *telemetry.Log) {
	h := rec.Header
	fmt.Printf("recording %s\n", file)
	fmt.Printf("run %s  started %s  seed %d\n\n", h.RunID, h.StartedAt.Format("2006-01-02 15:04:05"), h.Seed)

	fmt.Printf("%-6s %-10s %6s %8s %8s\n", "round", "outcome", "ticks", "sim_s", "wall_ms")
	for _, r := range rec.Rounds {
		fmt.Printf("%-6d %-10s %6d %8.2f %8d\n", r.Round, r.Outcome, r.Ticks, r.SimTime, r.WallMs)
	}

	if rec.Run != nil {
		fmt.Printf("\n%d/%d succeeded (%.0f%%), %d collided, %d timed out\n",
			rec.Run.Succeeded, rec.Run.Rounds, rec.Run.SuccessRate*100,
			rec.Run.Collided, rec.Run.TimedOut)
	} else {
		fmt.Printf("\nno run record: recording is truncated after %d ticks\n", len(rec.Ticks))
	}
	fmt.Printf("%d ticks recorded\n", len(rec.Ticks))
}

func printJSON(rec *telemetry.Log) {
	out := struct {
		Header *telemetry.Header       `json:"header"`
		Rounds []telemetry.RoundRecord `json:"rounds"`
		Run    *telemetry.RunRecord    `json:"run,omitempty"`
		Ticks  int                     `json:"ticks"`
	}{
		Header: rec.Header,
		Rounds: rec.Rounds,
		Run:    rec.Run,
		Ticks:  len(rec.Ticks),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
