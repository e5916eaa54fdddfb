// Package telemetry defines the stream of records a simulation run emits and
// the sinks that consume them: a zstd-compressed JSONL recorder, a websocket
// hub for live viewers, and a redis publisher.
package telemetry

import "time"

// Record type discriminators, carried in every record's "type" field so a
// single JSONL stream can mix record kinds.
const (
	TypeHeader = "header"
	TypeTick   = "tick"
	TypeRound  = "round"
	TypeRun    = "run"
)

// Header opens a recorded stream. It carries everything a replay needs to
// re-run the simulation: the seed, the round count, and the scenario
// configuration verbatim.
type Header struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Seed       int64     `json:"seed"`
	Rounds     int       `json:"rounds"`
	ConfigYAML string    `json:"config_yaml"`
}

// VehicleTick is one vehicle's slice of a tick record.
type VehicleTick struct {
	ID       string       `json:"id"`
	Color    string       `json:"color,omitempty"`
	Level    int          `json:"level"`
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Heading  float64      `json:"heading"`
	Speed    float64      `json:"speed"`
	Action   string       `json:"action"`
	AtGoal   bool         `json:"at_goal"`
	Fallback bool         `json:"fallback"`
	Expected [][2]float64 `json:"expected,omitempty"`
}

// TickRecord is the committed world state after one simulation step.
type TickRecord struct {
	Type     string        `json:"type"`
	Round    int           `json:"round"`
	Tick     int           `json:"tick"`
	SimTime  float64       `json:"sim_time"`
	Vehicles []VehicleTick `json:"vehicles"`
}

// RoundRecord summarizes one finished round.
type RoundRecord struct {
	Type       string      `json:"type"`
	Round      int         `json:"round"`
	Outcome    string      `json:"outcome"`
	Ticks      int         `json:"ticks"`
	SimTime    float64     `json:"sim_time"`
	WallMs     int64       `json:"wall_ms"`
	Collisions [][2]string `json:"collisions,omitempty"`
}

// RunRecord closes a stream with the aggregate result of the whole run.
type RunRecord struct {
	Type        string  `json:"type"`
	RunID       string  `json:"run_id"`
	Rounds      int     `json:"rounds"`
	Succeeded   int     `json:"succeeded"`
	Collided    int     `json:"collided"`
	TimedOut    int     `json:"timed_out"`
	SuccessRate float64 `json:"success_rate"`
	WallMs      int64   `json:"wall_ms"`
}
