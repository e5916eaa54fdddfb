package planner

import (
	"math"
	"math/rand"

	"github.com/efreeman/crossway/pkg/motion"
)

// Policy picks maneuvers during rollouts. Implementations must be
// deterministic given the same RNG stream and inputs, and safe for concurrent
// use from multiple searches.
type Policy interface {
	Name() string
	Choose(rng *rand.Rand, s motion.State, goal motion.Pose, b motion.Body, lim motion.Limits, dt float64) motion.Action
}

// rolloutJitter perturbs the heuristic's normalized progress scores so
// rollouts stay stochastic instead of committing to one line.
const rolloutJitter = 0.35

// HeuristicPolicy is the default rollout policy: greedy two-step goal
// progress with a small random jitter. Cheap enough to run thousands of
// times per planning cycle.
type HeuristicPolicy struct{}

func (HeuristicPolicy) Name() string { return "heuristic" }

// Choose steps each maneuver forward twice (the maneuver, then a coasting
// step, since position responds to speed and heading one step late) and picks
// the one that closes the most distance to the goal.
func (HeuristicPolicy) Choose(rng *rand.Rand, s motion.State, goal motion.Pose, b motion.Body, lim motion.Limits, dt float64) motion.Action {
	base := s.DistanceTo(goal)
	norm := lim.MaxSpeed * dt
	if norm <= 0 {
		norm = 1
	}
	best := motion.Maintain
	bestScore := math.Inf(-1)
	for _, a := range motion.Actions() {
		next := motion.Step(s, a, dt, b, lim)
		next = motion.Step(next, motion.Maintain, dt, b, lim)
		score := (base - next.DistanceTo(goal)) / norm
		if rng != nil {
			score += rng.Float64() * rolloutJitter
		}
		if score > bestScore {
			bestScore = score
			best = a
		}
	}
	return best
}
