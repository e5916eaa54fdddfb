package planner

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/efreeman/crossway/pkg/crossroads"
	"github.com/efreeman/crossway/pkg/motion"
)

func testConfig() Config {
	return Config{
		Env:           crossroads.New(25, 4.2),
		Dt:            0.25,
		MaxDepth:      8,
		Iterations:    400,
		Exploration:   math.Sqrt2,
		Weights:       Weights{Progress: 1, Collision: 10, Proximity: 0.3, Comfort: 0.15, OffRoad: 0.5},
		GoalTolerance: 2,
		Envelope:      motion.DefaultEnvelope(),
	}
}

func testAgent(id string, level int, x, y, heading, speed, gx, gy float64) Agent {
	return Agent{
		ID:     id,
		Level:  level,
		State:  motion.State{X: x, Y: y, Heading: heading, Speed: speed},
		Goal:   motion.Pose{X: gx, Y: gy},
		Body:   motion.DefaultBody(),
		Limits: motion.DefaultLimits(),
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }},
		{"negative iterations", func(c *Config) { c.Iterations = -1 }},
		{"zero exploration", func(c *Config) { c.Exploration = 0 }},
		{"zero tolerance", func(c *Config) { c.GoalTolerance = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Fatal("expected config error, got nil")
			}
		})
	}
}

func TestPlanFallbackOnZeroIterations(t *testing.T) {
	cfg := testConfig()
	cfg.Iterations = 0
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ego := testAgent("ego", 1, 2.1, -16, math.Pi/2, 4, 2.1, 16)
	d := p.Plan(7, ego, nil)

	if !d.Fallback {
		t.Error("expected fallback with a zero iteration budget")
	}
	if d.Action != FallbackAction {
		t.Errorf("action = %v, want %v", d.Action, FallbackAction)
	}
	if d.Iterations != 0 {
		t.Errorf("iterations = %d, want 0", d.Iterations)
	}
	if len(d.Expected) != cfg.MaxDepth+1 {
		t.Fatalf("expected trajectory length = %d, want %d", len(d.Expected), cfg.MaxDepth+1)
	}
	if d.Expected[0] != ego.State {
		t.Errorf("trajectory should start at the current state, got %+v", d.Expected[0])
	}
	for i := 1; i < len(d.Expected); i++ {
		if d.Expected[i].Speed > d.Expected[i-1].Speed {
			t.Errorf("fallback trajectory speeds up at step %d: %v -> %v",
				i, d.Expected[i-1].Speed, d.Expected[i].Speed)
		}
	}
}

func TestPlanFallbackOnZeroDepth(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 0
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d := p.Plan(7, testAgent("ego", 1, 2.1, -16, math.Pi/2, 4, 2.1, 16), nil)

	if !d.Fallback {
		t.Error("expected fallback with a zero search horizon")
	}
	if d.Action != FallbackAction {
		t.Errorf("action = %v, want %v", d.Action, FallbackAction)
	}
	if len(d.Expected) != 1 {
		t.Errorf("expected trajectory length = %d, want 1", len(d.Expected))
	}
}

func TestPlanDeterministic(t *testing.T) {
	ego := testAgent("blue", 1, 2.1, -16, math.Pi/2, 4, -16, 2.1)
	others := []Agent{testAgent("red", 0, -2.1, 16, -math.Pi/2, 5, -2.1, -16)}

	p1, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p2, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a := p1.Plan(42, ego, others)
	b := p1.Plan(42, ego, others)
	c := p2.Plan(42, ego, others)

	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated plan differs:\n%+v\n%+v", a, b)
	}
	if !reflect.DeepEqual(a, c) {
		t.Errorf("plan differs across planner instances:\n%+v\n%+v", a, c)
	}
}

func TestPlanDrivesTowardGoal(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ego := testAgent("ego", 1, 2.1, -16, math.Pi/2, 4, 2.1, 16)
	d := p.Plan(11, ego, nil)

	if d.Fallback {
		t.Fatal("unexpected fallback on an open road")
	}
	if d.Action == motion.Brake || d.Action == motion.Decelerate {
		t.Errorf("action = %v, want forward progress on an open road", d.Action)
	}
	start := ego.State.DistanceTo(ego.Goal)
	end := d.Expected[len(d.Expected)-1].DistanceTo(ego.Goal)
	if end >= start {
		t.Errorf("best path does not approach the goal: %v -> %v", start, end)
	}
}

func TestPlanAvoidsHeadOnCollision(t *testing.T) {
	cfg := testConfig()
	cfg.Iterations = 800
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Oncoming vehicle dead ahead, closing at 8 m/s. Holding course or
	// accelerating collides within the horizon.
	ego := testAgent("ego", 1, 0, -6, math.Pi/2, 4, 0, 16)
	other := testAgent("other", 0, 0, 6, -math.Pi/2, 4, 0, -16)

	d := p.Plan(3, ego, []Agent{other})

	if d.Fallback {
		t.Fatal("unexpected fallback")
	}
	if d.Action == motion.Maintain || d.Action == motion.Accelerate {
		t.Errorf("action = %v, planner drove straight into oncoming traffic", d.Action)
	}
}

func TestPredictLevelZeroCoasts(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ego := testAgent("ego", 0, 2.1, -16, math.Pi/2, 4, 2.1, 16)
	other := testAgent("other", 3, -2.1, 16, -math.Pi/2, 5, -2.1, -16)

	got := p.predictOne(9, ego, []Agent{other}, 0, p.cfg.Iterations, time.Time{})

	want := other.State
	for i, s := range got {
		if s != want {
			t.Fatalf("step %d: predicted %+v, want constant velocity %+v", i, s, want)
		}
		want = motion.Step(want, motion.Maintain, p.cfg.Dt, other.Body, other.Limits)
	}
	if len(got) != p.cfg.MaxDepth+1 {
		t.Errorf("trajectory length = %d, want %d", len(got), p.cfg.MaxDepth+1)
	}
}

func TestPredictAtGoalHolds(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ego := testAgent("ego", 4, 2.1, -16, math.Pi/2, 4, 2.1, 16)
	parked := testAgent("parked", 4, -16, 2.1, math.Pi, 0, -16, 2.1)
	parked.AtGoal = true

	got := p.predictOne(9, ego, []Agent{parked}, 0, p.cfg.Iterations, time.Time{})

	for i, s := range got {
		if s.X != parked.State.X || s.Y != parked.State.Y || s.Speed != 0 {
			t.Fatalf("step %d: finished vehicle should hold position, got %+v", i, s)
		}
	}
}

func TestPlanHighLevelsTerminate(t *testing.T) {
	cfg := testConfig()
	cfg.Iterations = 200
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ego := testAgent("a", 5, 2.1, -16, math.Pi/2, 4, 2.1, 16)
	others := []Agent{
		testAgent("b", 5, -2.1, 16, -math.Pi/2, 4, -2.1, -16),
		testAgent("c", 5, -16, -2.1, 0, 4, 16, -2.1),
	}

	d := p.Plan(1, ego, others)
	if len(d.Expected) != cfg.MaxDepth+1 {
		t.Errorf("trajectory length = %d, want %d", len(d.Expected), cfg.MaxDepth+1)
	}
}

func BenchmarkPlan(b *testing.B) {
	p, err := New(testConfig())
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	ego := testAgent("blue", 1, 2.1, -16, math.Pi/2, 4, -16, 2.1)
	others := []Agent{testAgent("red", 0, -2.1, 16, -math.Pi/2, 5, -2.1, -16)}

	var seed int64
	for b.Loop() {
		seed++
		p.Plan(seed, ego, others)
	}
}
