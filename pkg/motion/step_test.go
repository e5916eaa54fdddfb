package motion

import (
	"math"
	"testing"
)

func TestStepDoesNotMutateInput(t *testing.T) {
	s := State{X: 1, Y: 2, Heading: 0.3, Speed: 4, T: 5}
	orig := s
	Step(s, Accelerate, 0.25, DefaultBody(), DefaultLimits())
	if s != orig {
		t.Fatalf("Step mutated its input: %+v != %+v", s, orig)
	}
}

func TestStepStraightLine(t *testing.T) {
	next := Step(State{Speed: 2}, Maintain, 0.5, DefaultBody(), DefaultLimits())
	if math.Abs(next.X-1) > 1e-9 || math.Abs(next.Y) > 1e-9 {
		t.Errorf("position = (%v, %v), want (1, 0)", next.X, next.Y)
	}
	if next.Speed != 2 {
		t.Errorf("maintain changed speed: %v", next.Speed)
	}
	if next.T != 0.5 {
		t.Errorf("timestamp = %v, want 0.5", next.T)
	}
}

func TestStepSpeedClamps(t *testing.T) {
	b, lim := DefaultBody(), DefaultLimits()

	stopped := Step(State{}, Brake, 1.0, b, lim)
	if stopped.Speed != 0 {
		t.Errorf("braking at rest gave speed %v, want 0", stopped.Speed)
	}

	fast := Step(State{Speed: lim.MaxSpeed}, Accelerate, 1.0, b, lim)
	if fast.Speed != lim.MaxSpeed {
		t.Errorf("accelerating at max gave speed %v, want %v", fast.Speed, lim.MaxSpeed)
	}
}

func TestStepZeroDt(t *testing.T) {
	s := State{X: 3, Y: 4, Heading: 1, Speed: 5, T: 2}
	next := Step(s, Accelerate, 0, DefaultBody(), DefaultLimits())
	s.T = next.T
	if next != s {
		t.Errorf("zero dt changed more than the timestamp: %+v", next)
	}
}

func TestStepTurnNeedsSpeed(t *testing.T) {
	parked := Step(State{}, TurnLeft, 0.25, DefaultBody(), DefaultLimits())
	if parked.Heading != 0 {
		t.Errorf("turning at rest rotated heading to %v", parked.Heading)
	}

	moving := Step(State{Speed: 4}, TurnLeft, 0.25, DefaultBody(), DefaultLimits())
	if moving.Heading <= 0 {
		t.Errorf("turn_left at speed gave heading %v, want > 0", moving.Heading)
	}
	right := Step(State{Speed: 4}, TurnRight, 0.25, DefaultBody(), DefaultLimits())
	if right.Heading >= 0 {
		t.Errorf("turn_right at speed gave heading %v, want < 0", right.Heading)
	}
}

func TestStepStaysFinite(t *testing.T) {
	b, lim := DefaultBody(), DefaultLimits()
	s := State{X: 2.1, Y: -15, Heading: math.Pi / 2, Speed: 6}
	for i := 0; i < 2000; i++ {
		for _, a := range Actions() {
			s = Step(s, a, 0.25, b, lim)
		}
		if !Valid(s, 1e6) {
			t.Fatalf("state went invalid after %d cycles: %+v", i, s)
		}
	}
	if s.Speed < 0 || s.Speed > lim.MaxSpeed {
		t.Errorf("speed %v outside [0, %v]", s.Speed, lim.MaxSpeed)
	}
}
