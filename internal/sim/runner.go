// Package sim orchestrates rounds of the intersection simulation: reset,
// bulk-synchronous plan/commit ticks, outcome classification, and telemetry.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/efreeman/crossway/internal/config"
	"github.com/efreeman/crossway/internal/planner"
	"github.com/efreeman/crossway/internal/telemetry"
	"github.com/efreeman/crossway/pkg/crossroads"
	"github.com/efreeman/crossway/pkg/motion"
)

// ErrInvariant marks a committed state the simulation must never produce:
// non-finite values or a position far beyond the map. Distinct from a
// collision, which is a normal round outcome.
var ErrInvariant = errors.New("invariant violation")

// invariantBoundFactor scales the map size into the hard position bound.
// Legal off-road wandering stays well inside it.
const invariantBoundFactor = 10

// Outcome classifies a round.
type Outcome int

const (
	Running Outcome = iota
	Succeeded
	Collided
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Collided:
		return "collided"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// RoundResult is the outcome of one round.
type RoundResult struct {
	Round      int
	Outcome    Outcome
	Ticks      int
	SimTime    float64
	Wall       time.Duration
	Collisions [][2]string
}

// Summary aggregates a run. Results holds only completed rounds, so a
// canceled run reports what actually happened.
type Summary struct {
	Rounds    int
	Succeeded int
	Collided  int
	TimedOut  int
	Results   []RoundResult
}

// SuccessRate is the fraction of completed rounds that succeeded.
func (s *Summary) SuccessRate() float64 {
	if len(s.Results) == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(len(s.Results))
}

func (s *Summary) record(res RoundResult) {
	s.Results = append(s.Results, res)
	switch res.Outcome {
	case Succeeded:
		s.Succeeded++
	case Collided:
		s.Collided++
	case TimedOut:
		s.TimedOut++
	}
}

// Options control one run.
type Options struct {
	RunID   string
	Rounds  int
	Seed    int64
	Workers int            // 0 means GOMAXPROCS
	Sink    telemetry.Sink // nil disables telemetry
}

// Runner executes rounds sequentially, planning all vehicles of a tick in
// parallel on a bounded worker pool.
type Runner struct {
	cfg      config.Config
	opts     Options
	planner  *planner.Planner
	vehicles []*Vehicle
	bound    float64
	maxTicks int
}

// PlannerConfig assembles the planner configuration for a scenario.
func PlannerConfig(cfg config.Config, pol planner.Policy) planner.Config {
	w := cfg.Search.Weights
	return planner.Config{
		Env:         crossroads.New(cfg.MapSize, cfg.LaneWidth),
		Dt:          cfg.DeltaT,
		MaxDepth:    cfg.Search.MaxDepth,
		Iterations:  cfg.Search.Iterations,
		TimeBudget:  cfg.Search.TimeBudget(),
		Exploration: cfg.Search.Exploration,
		Weights: planner.Weights{
			Progress:  w.Progress,
			Collision: w.Collision,
			Proximity: w.Proximity,
			Comfort:   w.Comfort,
			OffRoad:   w.OffRoad,
		},
		GoalTolerance: cfg.GoalTolerance,
		Envelope:      cfg.MotionEnvelope(),
		Policy:        pol,
	}
}

// New validates the options and builds a Runner over the configured fleet.
func New(cfg config.Config, p *planner.Planner, opts Options) (*Runner, error) {
	if opts.Rounds < 1 {
		return nil, fmt.Errorf("sim: rounds must be at least 1, got %d", opts.Rounds)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	order := cfg.VehicleOrder()
	vehicles := make([]*Vehicle, len(order))
	for i, name := range order {
		vehicles[i] = newVehicle(name, cfg.VehicleList[name], cfg)
	}

	maxTicks := int(cfg.MaxSimTime / cfg.DeltaT)
	if maxTicks < 1 {
		maxTicks = 1
	}

	return &Runner{
		cfg:      cfg,
		opts:     opts,
		planner:  p,
		vehicles: vehicles,
		bound:    cfg.MapSize * invariantBoundFactor,
		maxTicks: maxTicks,
	}, nil
}

// Run executes the configured rounds. Cancellation is honored at round and
// tick boundaries only; a planning cycle in flight always completes. The
// returned summary covers the rounds that finished even when err is non-nil.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	pool := newPool(r.opts.Workers)
	defer pool.close()

	summary := &Summary{Rounds: r.opts.Rounds}
	start := time.Now()
	for round := 0; round < r.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := r.runRound(ctx, pool, round)
		if err != nil {
			return summary, err
		}
		summary.record(res)
		log.Info().
			Int("round", res.Round).
			Stringer("outcome", res.Outcome).
			Int("ticks", res.Ticks).
			Dur("wall", res.Wall).
			Msg("Round finished")
		r.emitRound(res)
	}
	r.emitRun(summary, time.Since(start))
	return summary, nil
}

func (r *Runner) runRound(ctx context.Context, pool *pool, round int) (RoundResult, error) {
	wallStart := time.Now()
	rng := rand.New(rand.NewSource(mixSeed(r.opts.Seed, int64(round))))
	for _, v := range r.vehicles {
		v.Reset(rng)
	}

	res := RoundResult{Round: round, Outcome: Running}
	for tick := 0; tick < r.maxTicks; tick++ {
		if err := ctx.Err(); err != nil {
			res.Wall = time.Since(wallStart)
			return res, err
		}

		r.latchGoals()
		if r.allAtGoal() {
			res.Outcome = Succeeded
			break
		}
		if pairs := r.overlaps(); len(pairs) > 0 {
			res.Outcome = Collided
			res.Collisions = pairs
			break
		}

		r.planTick(pool, round, tick)
		if err := r.commitTick(round, tick); err != nil {
			res.Wall = time.Since(wallStart)
			return res, err
		}
		res.Ticks = tick + 1
		res.SimTime = float64(tick+1) * r.cfg.DeltaT
		r.emitTick(round, tick)
	}
	if res.Outcome == Running {
		res.Outcome = TimedOut
	}
	res.Wall = time.Since(wallStart)
	return res, nil
}

// latchGoals marks fresh arrivals. The latch is monotonic within a round:
// once a vehicle parks it never un-parks.
func (r *Runner) latchGoals() {
	for _, v := range r.vehicles {
		if !v.AtGoal && motion.AtGoal(v.State, v.Goal, r.cfg.GoalTolerance) {
			v.park()
			log.Debug().Str("vehicle", v.ID).Msg("Goal reached")
		}
	}
}

func (r *Runner) allAtGoal() bool {
	for _, v := range r.vehicles {
		if !v.AtGoal {
			return false
		}
	}
	return true
}

// overlaps reports every colliding pair of physical bodies, parked vehicles
// included.
func (r *Runner) overlaps() [][2]string {
	var pairs [][2]string
	for i := 0; i < len(r.vehicles); i++ {
		for j := i + 1; j < len(r.vehicles); j++ {
			a, b := r.vehicles[i], r.vehicles[j]
			if motion.Overlap(a.State, a.Body, b.State, b.Body) {
				pairs = append(pairs, [2]string{a.ID, b.ID})
			}
		}
	}
	return pairs
}

// planTick freezes a snapshot of the fleet and fans one planning task per
// moving vehicle onto the pool. Plan seeds depend only on (run seed, round,
// tick, vehicle index), so results are identical for any worker count.
func (r *Runner) planTick(pool *pool, round, tick int) {
	agents := make([]planner.Agent, len(r.vehicles))
	for i, v := range r.vehicles {
		agents[i] = v.agent()
	}

	for i, v := range r.vehicles {
		if v.AtGoal {
			continue
		}
		seed := mixSeed(r.opts.Seed, int64(round), int64(tick), int64(i))
		ego := agents[i]
		others := make([]planner.Agent, 0, len(agents)-1)
		for j := range agents {
			if j != i {
				others = append(others, agents[j])
			}
		}
		pool.submit(func() {
			v.apply(r.planner.Plan(seed, ego, others))
		})
	}
	pool.wait()
}

// commitTick advances every moving vehicle by one step and checks the state
// invariants.
func (r *Runner) commitTick(round, tick int) error {
	for _, v := range r.vehicles {
		if v.AtGoal {
			continue
		}
		v.State = motion.Step(v.State, v.Action, r.cfg.DeltaT, v.Body, v.Limits)
		if !motion.Valid(v.State, r.bound) {
			return fmt.Errorf("%w: round %d tick %d vehicle %s state %+v",
				ErrInvariant, round, tick, v.ID, v.State)
		}
	}
	return nil
}

func (r *Runner) emitTick(round, tick int) {
	if r.opts.Sink == nil {
		return
	}
	rec := telemetry.TickRecord{
		Round:    round,
		Tick:     tick,
		SimTime:  float64(tick+1) * r.cfg.DeltaT,
		Vehicles: make([]telemetry.VehicleTick, len(r.vehicles)),
	}
	for i, v := range r.vehicles {
		vt := telemetry.VehicleTick{
			ID:       v.ID,
			Color:    v.Color,
			Level:    v.Level,
			X:        v.State.X,
			Y:        v.State.Y,
			Heading:  v.State.Heading,
			Speed:    v.State.Speed,
			Action:   v.Action.String(),
			AtGoal:   v.AtGoal,
			Fallback: v.Fallback,
		}
		if len(v.Expected) > 0 {
			vt.Expected = make([][2]float64, len(v.Expected))
			for k, s := range v.Expected {
				vt.Expected[k] = [2]float64{s.X, s.Y}
			}
		}
		rec.Vehicles[i] = vt
	}
	if err := r.opts.Sink.OnTick(&rec); err != nil {
		log.Warn().Err(err).Msg("Telemetry sink rejected tick record")
	}
}

func (r *Runner) emitRound(res RoundResult) {
	if r.opts.Sink == nil {
		return
	}
	rec := telemetry.RoundRecord{
		Round:      res.Round,
		Outcome:    res.Outcome.String(),
		Ticks:      res.Ticks,
		SimTime:    res.SimTime,
		WallMs:     res.Wall.Milliseconds(),
		Collisions: res.Collisions,
	}
	if err := r.opts.Sink.OnRoundEnd(&rec); err != nil {
		log.Warn().Err(err).Msg("Telemetry sink rejected round record")
	}
}

func (r *Runner) emitRun(s *Summary, wall time.Duration) {
	if r.opts.Sink == nil {
		return
	}
	rec := telemetry.RunRecord{
		RunID:       r.opts.RunID,
		Rounds:      len(s.Results),
		Succeeded:   s.Succeeded,
		Collided:    s.Collided,
		TimedOut:    s.TimedOut,
		SuccessRate: s.SuccessRate(),
		WallMs:      wall.Milliseconds(),
	}
	if err := r.opts.Sink.OnRunEnd(&rec); err != nil {
		log.Warn().Err(err).Msg("Telemetry sink rejected run record")
	}
}

// mixSeed folds salts into a base seed so every (round, tick, vehicle)
// planning task draws from an independent deterministic stream.
func mixSeed(base int64, salts ...int64) int64 {
	h := uint64(base)
	for _, s := range salts {
		h ^= uint64(s) * 0x9e3779b97f4a7c15
		h = (h ^ (h >> 30)) * 0xbf58476d1ce4e5b9
		h = (h ^ (h >> 27)) * 0x94d049bb133111eb
		h ^= h >> 31
	}
	return int64(h)
}
