// Package planner implements the per-vehicle decision search: a Monte Carlo
// tree search over the discrete maneuver set, planning against level-k
// predictions of the other vehicles' trajectories.
package planner

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/efreeman/crossway/pkg/crossroads"
	"github.com/efreeman/crossway/pkg/motion"
)

// FallbackAction is the safety floor returned when the search expands no root
// child: maximum deceleration.
const FallbackAction = motion.Brake

const (
	// predBudgetDiv scales the iteration budget down at each recursion level
	// of opponent prediction.
	predBudgetDiv = 4
	// minPredIterations floors a sub-search budget so shallow predictions
	// stay meaningful when the top-level budget is small but nonzero.
	minPredIterations = 16
	// deadlineCheckEvery bounds how often a search polls the wall clock.
	deadlineCheckEvery = 64
)

// Weights scale the reward terms accumulated during rollouts.
type Weights struct {
	Progress  float64
	Collision float64
	Proximity float64
	Comfort   float64
	OffRoad   float64
}

// Config tunes a Planner. Immutable after New; one Config value is shared by
// reference across all concurrent Plan calls.
type Config struct {
	Env           crossroads.Env
	Dt            float64
	MaxDepth      int
	Iterations    int
	TimeBudget    time.Duration // 0 keeps searches purely iteration-bounded
	Exploration   float64
	Weights       Weights
	GoalTolerance float64
	Envelope      motion.Body // inflated box for proximity penalties
	Policy        Policy      // rollout policy; nil means HeuristicPolicy
}

// Agent is the planner-facing snapshot of one vehicle. Plan never mutates it.
type Agent struct {
	ID     string
	Level  int
	State  motion.State
	Goal   motion.Pose
	Body   motion.Body
	Limits motion.Limits
	AtGoal bool
}

// Decision is the outcome of one planning cycle.
type Decision struct {
	Action     motion.Action
	Expected   []motion.State // best-path trajectory, current state first
	Iterations int            // iterations actually spent by the root search
	Fallback   bool           // true when no root child was expanded
}

// Planner runs decision searches. Safe for concurrent use: each Plan call
// builds its own tree and RNG from the caller's seed.
type Planner struct {
	cfg Config
}

// New validates the configuration and builds a Planner. Zero MaxDepth and
// zero Iterations are legal: every Plan call then returns the fallback.
func New(cfg Config) (*Planner, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("planner: dt must be positive, got %v", cfg.Dt)
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("planner: max depth must not be negative, got %d", cfg.MaxDepth)
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("planner: iterations must not be negative, got %d", cfg.Iterations)
	}
	if cfg.Exploration <= 0 {
		return nil, fmt.Errorf("planner: exploration must be positive, got %v", cfg.Exploration)
	}
	if cfg.GoalTolerance <= 0 {
		return nil, fmt.Errorf("planner: goal tolerance must be positive, got %v", cfg.GoalTolerance)
	}
	if cfg.Policy == nil {
		cfg.Policy = HeuristicPolicy{}
	}
	return &Planner{cfg: cfg}, nil
}

// Config returns the planner's immutable configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// Plan picks the next maneuver for ego against a frozen snapshot of the other
// vehicles. Deterministic for a fixed (seed, ego, others, config) while no
// wall-clock budget is configured. The others slice must be in a stable order
// chosen by the caller.
func (p *Planner) Plan(seed int64, ego Agent, others []Agent) Decision {
	var deadline time.Time
	if p.cfg.TimeBudget > 0 {
		deadline = time.Now().Add(p.cfg.TimeBudget)
	}
	return p.planWith(seed, ego, others, p.cfg.Iterations, deadline)
}

// planWith runs one search at ego's reasoning level with an explicit budget.
// Opponent prediction recurses through predictOne with strictly decreasing
// levels, so it terminates by construction.
func (p *Planner) planWith(seed int64, ego Agent, others []Agent, iters int, deadline time.Time) Decision {
	pred := make([][]motion.State, len(others))
	for i := range others {
		pred[i] = p.predictOne(seed, ego, others, i, iters, deadline)
	}
	s := &search{
		p:        p,
		rng:      rand.New(rand.NewSource(mix(seed, searchSalt))),
		ego:      ego,
		others:   others,
		pred:     pred,
		deadline: deadline,
	}
	return s.run(iters)
}

// predictOne builds the predicted trajectory of others[i], MaxDepth+1 states
// long with the current state first. A level-0 ego models everyone as
// constant-velocity; otherwise others[i] is re-planned as an ego of level
// min(its level, ego level - 1) with a reduced budget.
func (p *Planner) predictOne(seed int64, ego Agent, others []Agent, i int, iters int, deadline time.Time) []motion.State {
	o := others[i]
	if ego.Level == 0 || o.AtGoal {
		return p.coast(o)
	}

	subEgo := o
	subEgo.Level = min(o.Level, ego.Level-1)

	subOthers := make([]Agent, 0, len(others))
	subOthers = append(subOthers, ego)
	for j := range others {
		if j != i {
			subOthers = append(subOthers, others[j])
		}
	}

	subIters := iters / predBudgetDiv
	if iters > 0 && subIters < minPredIterations {
		subIters = min(minPredIterations, iters)
	}

	d := p.planWith(mix(seed, predSeedSalt+int64(i)), subEgo, subOthers, subIters, deadline)
	return d.Expected
}

// coast extrapolates an agent at constant velocity for the search horizon.
func (p *Planner) coast(o Agent) []motion.State {
	traj := make([]motion.State, p.cfg.MaxDepth+1)
	traj[0] = o.State
	for d := 1; d <= p.cfg.MaxDepth; d++ {
		traj[d] = motion.Step(traj[d-1], motion.Maintain, p.cfg.Dt, o.Body, o.Limits)
	}
	return traj
}

const (
	searchSalt   = 0x5ea3c4
	predSeedSalt = 0x1000
)

// mix derives an independent RNG seed from a base seed and a salt, so
// concurrent planners and nested predictions never share random streams.
func mix(seed, salt int64) int64 {
	z := uint64(seed) + 0x9e3779b97f4a7c15*uint64(salt+1)
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
