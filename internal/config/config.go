// Package config loads and validates YAML scenario files for the simulator.
package config

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/efreeman/crossway/pkg/motion"
)

// MaxLevel is the highest reasoning level a vehicle may be configured with.
const MaxLevel = 5

// Config is one scenario: the world, the search tuning, and the fleet.
// Immutable after Load; shared by reference across the whole run.
type Config struct {
	DeltaT        float64 `yaml:"delta_t"`             // simulation step, seconds
	MaxSimTime    float64 `yaml:"max_simulation_time"` // per-round ceiling, seconds
	MapSize       float64 `yaml:"map_size"`            // half-width of the square map, meters
	LaneWidth     float64 `yaml:"lane_width"`          // single lane width, meters
	GoalTolerance float64 `yaml:"goal_tolerance"`      // goal radius, meters

	Body   BodyConfig   `yaml:"body"`
	Safety SafetyConfig `yaml:"safety"`
	Limits LimitsConfig `yaml:"limits"`
	Search SearchConfig `yaml:"search"`

	VehicleList map[string]VehicleConfig `yaml:"vehicle_list"`
}

// BodyConfig sets the shared vehicle footprint.
type BodyConfig struct {
	Length    float64 `yaml:"length"`
	Width     float64 `yaml:"width"`
	Wheelbase float64 `yaml:"wheelbase"`
}

// SafetyConfig sets the inflated envelope used for proximity penalties.
type SafetyConfig struct {
	Length float64 `yaml:"length"`
	Width  float64 `yaml:"width"`
}

// LimitsConfig sets the shared kinematic clamps.
type LimitsConfig struct {
	MaxSpeed float64 `yaml:"max_speed"`
	MaxAccel float64 `yaml:"max_accel"`
	MaxDecel float64 `yaml:"max_decel"`
}

// SearchConfig tunes the per-vehicle planner.
type SearchConfig struct {
	MaxDepth     int           `yaml:"max_depth"`
	Iterations   int           `yaml:"iterations"`
	TimeBudgetMS int           `yaml:"time_budget_ms"` // 0 keeps the search purely iteration-bounded
	Exploration  float64       `yaml:"exploration"`
	Policy       string        `yaml:"policy"` // "heuristic" or "neural"
	ModelPath    string        `yaml:"model_path"`
	Weights      WeightsConfig `yaml:"weights"`
}

// WeightsConfig scales the planner's reward terms.
type WeightsConfig struct {
	Progress  float64 `yaml:"progress"`
	Collision float64 `yaml:"collision"`
	Proximity float64 `yaml:"proximity"`
	Comfort   float64 `yaml:"comfort"`
	OffRoad   float64 `yaml:"offroad"`
}

// VehicleConfig describes one fleet member.
type VehicleConfig struct {
	Color  string       `yaml:"color"`
	Level  int          `yaml:"level"`
	Init   InitConfig   `yaml:"init"`
	Target TargetConfig `yaml:"target"`
}

// InitConfig is a vehicle's start pose. Speed is drawn uniformly from
// [speed_min, speed_max] at every round reset.
type InitConfig struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Heading  float64 `yaml:"heading"` // radians
	SpeedMin float64 `yaml:"speed_min"`
	SpeedMax float64 `yaml:"speed_max"`
}

// TargetConfig is a vehicle's goal pose.
type TargetConfig struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Heading float64 `yaml:"heading"`
}

// Default returns the baseline scenario values applied before decoding.
func Default() Config {
	body := motion.DefaultBody()
	env := motion.DefaultEnvelope()
	lim := motion.DefaultLimits()
	return Config{
		DeltaT:        0.25,
		MaxSimTime:    40,
		MapSize:       25,
		LaneWidth:     4.2,
		GoalTolerance: 2.0,
		Body:          BodyConfig{Length: body.Length, Width: body.Width, Wheelbase: body.Wheelbase},
		Safety:        SafetyConfig{Length: env.Length, Width: env.Width},
		Limits:        LimitsConfig{MaxSpeed: lim.MaxSpeed, MaxAccel: lim.MaxAccel, MaxDecel: lim.MaxDecel},
		Search: SearchConfig{
			MaxDepth:    8,
			Iterations:  1000,
			Exploration: math.Sqrt2,
			Policy:      "heuristic",
			Weights:     WeightsConfig{Progress: 1, Collision: 10, Proximity: 0.3, Comfort: 0.15, OffRoad: 0.5},
		},
	}
}

// Load reads, decodes, and validates a scenario file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a scenario from raw YAML, as embedded in
// recorded telemetry headers.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects scenarios the simulator cannot run. Zero search depth and
// zero iterations are legal degenerate values (the planner falls back every
// tick); zero or negative world dimensions are not.
func (c Config) Validate() error {
	if c.DeltaT <= 0 {
		return fmt.Errorf("delta_t must be positive, got %v", c.DeltaT)
	}
	if c.MaxSimTime <= 0 {
		return fmt.Errorf("max_simulation_time must be positive, got %v", c.MaxSimTime)
	}
	if c.MapSize <= 0 {
		return fmt.Errorf("map_size must be positive, got %v", c.MapSize)
	}
	if c.LaneWidth <= 0 || c.LaneWidth*2 > c.MapSize {
		return fmt.Errorf("lane_width %v does not fit map_size %v", c.LaneWidth, c.MapSize)
	}
	if c.GoalTolerance <= 0 {
		return fmt.Errorf("goal_tolerance must be positive, got %v", c.GoalTolerance)
	}
	if c.Body.Length <= 0 || c.Body.Width <= 0 || c.Body.Wheelbase <= 0 {
		return fmt.Errorf("body dimensions must be positive, got %+v", c.Body)
	}
	if c.Safety.Length < c.Body.Length || c.Safety.Width < c.Body.Width {
		return fmt.Errorf("safety envelope %+v smaller than body %+v", c.Safety, c.Body)
	}
	if c.Limits.MaxSpeed <= 0 || c.Limits.MaxAccel <= 0 || c.Limits.MaxDecel <= 0 {
		return fmt.Errorf("limits must be positive, got %+v", c.Limits)
	}
	if err := c.Search.validate(); err != nil {
		return err
	}
	if len(c.VehicleList) == 0 {
		return fmt.Errorf("vehicle_list is empty")
	}
	for _, name := range c.VehicleOrder() {
		if err := c.validateVehicle(name, c.VehicleList[name]); err != nil {
			return err
		}
	}
	return nil
}

func (s SearchConfig) validate() error {
	if s.MaxDepth < 0 {
		return fmt.Errorf("search.max_depth must not be negative, got %d", s.MaxDepth)
	}
	if s.Iterations < 0 {
		return fmt.Errorf("search.iterations must not be negative, got %d", s.Iterations)
	}
	if s.TimeBudgetMS < 0 {
		return fmt.Errorf("search.time_budget_ms must not be negative, got %d", s.TimeBudgetMS)
	}
	if s.Exploration <= 0 {
		return fmt.Errorf("search.exploration must be positive, got %v", s.Exploration)
	}
	switch s.Policy {
	case "heuristic":
	case "neural":
		if s.ModelPath == "" {
			return fmt.Errorf("search.policy neural requires search.model_path")
		}
	default:
		return fmt.Errorf("unknown search.policy %q", s.Policy)
	}
	w := s.Weights
	for _, v := range []float64{w.Progress, w.Collision, w.Proximity, w.Comfort, w.OffRoad} {
		if v < 0 {
			return fmt.Errorf("search.weights must not be negative, got %+v", w)
		}
	}
	return nil
}

func (c Config) validateVehicle(name string, v VehicleConfig) error {
	if v.Level < 0 || v.Level > MaxLevel {
		return fmt.Errorf("vehicle %s: level %d outside [0, %d]", name, v.Level, MaxLevel)
	}
	if math.Abs(v.Init.X) > c.MapSize || math.Abs(v.Init.Y) > c.MapSize {
		return fmt.Errorf("vehicle %s: init (%v, %v) outside map", name, v.Init.X, v.Init.Y)
	}
	if math.Abs(v.Target.X) > c.MapSize || math.Abs(v.Target.Y) > c.MapSize {
		return fmt.Errorf("vehicle %s: target (%v, %v) outside map", name, v.Target.X, v.Target.Y)
	}
	if v.Init.SpeedMin < 0 || v.Init.SpeedMax < v.Init.SpeedMin {
		return fmt.Errorf("vehicle %s: speed range [%v, %v] invalid", name, v.Init.SpeedMin, v.Init.SpeedMax)
	}
	if v.Init.SpeedMax > c.Limits.MaxSpeed {
		return fmt.Errorf("vehicle %s: speed_max %v exceeds max_speed %v", name, v.Init.SpeedMax, c.Limits.MaxSpeed)
	}
	return nil
}

// VehicleOrder returns the fleet names sorted, giving every consumer the same
// vehicle ordering regardless of YAML map iteration.
func (c Config) VehicleOrder() []string {
	names := make([]string, 0, len(c.VehicleList))
	for name := range c.VehicleList {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MotionBody converts the configured footprint to motion types.
func (c Config) MotionBody() motion.Body {
	return motion.Body{Length: c.Body.Length, Width: c.Body.Width, Wheelbase: c.Body.Wheelbase}
}

// MotionEnvelope converts the safety envelope to motion types.
func (c Config) MotionEnvelope() motion.Body {
	return motion.Body{Length: c.Safety.Length, Width: c.Safety.Width, Wheelbase: c.Body.Wheelbase}
}

// MotionLimits converts the configured clamps to motion types.
func (c Config) MotionLimits() motion.Limits {
	return motion.Limits{MaxSpeed: c.Limits.MaxSpeed, MaxAccel: c.Limits.MaxAccel, MaxDecel: c.Limits.MaxDecel}
}

// TimeBudget returns the optional per-plan wall-clock budget.
func (s SearchConfig) TimeBudget() time.Duration {
	return time.Duration(s.TimeBudgetMS) * time.Millisecond
}
