package planner

import (
	"math"
	"testing"
	"time"

	"github.com/efreeman/crossway/pkg/motion"
)

func TestBestVisitChildTieBreak(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := &search{p: p}
	s.addNode(motion.State{}, noChild, motion.Maintain, 0, 0)

	child := func(a motion.Action, visits int, value float64) {
		ci := s.addNode(motion.State{}, 0, a, 1, 0)
		s.nodes[ci].visits = visits
		s.nodes[ci].value = value
		s.nodes[0].children[a] = ci
	}

	// Visit count dominates.
	child(motion.Maintain, 10, 1)
	child(motion.TurnLeft, 30, -5)
	if got := s.nodes[s.bestVisitChild(0)].action; got != motion.TurnLeft {
		t.Errorf("most-visited child should win, got %v", got)
	}

	// Equal visits: higher mean value wins.
	child(motion.TurnRight, 30, 2)
	if got := s.nodes[s.bestVisitChild(0)].action; got != motion.TurnRight {
		t.Errorf("higher mean should break the visit tie, got %v", got)
	}

	// Full tie: lowest maneuver ordinal wins.
	child(motion.Accelerate, 30, 2)
	if got := s.nodes[s.bestVisitChild(0)].action; got != motion.TurnRight {
		t.Errorf("lower ordinal should break the full tie, got %v", got)
	}
}

func TestPlanFallbackWhenEveryManeuverExitsMap(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// At the map edge, heading out at full speed: every first maneuver
	// leaves the map, so nothing can be expanded under the root.
	ego := testAgent("ego", 1, 24.9, 0, 0, 12, 16, -2.1)
	d := p.Plan(5, ego, nil)

	if !d.Fallback {
		t.Fatal("expected fallback when no maneuver keeps the vehicle on the map")
	}
	if d.Action != FallbackAction {
		t.Errorf("action = %v, want %v", d.Action, FallbackAction)
	}
}

func TestPlanStopsAtDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.Iterations = 1 << 30
	cfg.TimeBudget = time.Nanosecond
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ego := testAgent("ego", 0, 2.1, -16, math.Pi/2, 4, 2.1, 16)
	d := p.Plan(7, ego, nil)

	if d.Iterations != 0 {
		t.Errorf("iterations = %d, want 0 with an already-expired deadline", d.Iterations)
	}
	if !d.Fallback {
		t.Error("expected fallback when the deadline expires before any expansion")
	}
}

func TestRolloutPenalizesCollisionCourse(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ego := testAgent("ego", 1, 0, -6, math.Pi/2, 4, 0, 16)
	other := testAgent("other", 0, 0, 6, -math.Pi/2, 4, 0, -16)
	blocked := &search{p: p, ego: ego, others: []Agent{other}, pred: [][]motion.State{p.coast(other)}}

	head := motion.Step(ego.State, motion.Maintain, p.cfg.Dt, ego.Body, ego.Limits)
	// By depth 7 the oncoming vehicle has coasted into the ego's position.
	r, terminal := blocked.stepReward(ego.State, head, motion.Maintain, 7)
	if !terminal {
		t.Fatal("overlap with a predicted vehicle should terminate the rollout")
	}
	if r >= 0 {
		t.Errorf("collision reward = %v, want negative", r)
	}
}
