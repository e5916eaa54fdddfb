package planner

import (
	"math"
	"math/rand"
	"testing"

	"github.com/efreeman/crossway/pkg/motion"
)

func TestHeuristicPolicyAccelerates(t *testing.T) {
	s := motion.State{X: 0, Y: 0, Heading: 0, Speed: 2}
	goal := motion.Pose{X: 20, Y: 0}

	got := HeuristicPolicy{}.Choose(nil, s, goal, motion.DefaultBody(), motion.DefaultLimits(), 0.25)
	if got != motion.Accelerate {
		t.Errorf("goal dead ahead: chose %v, want %v", got, motion.Accelerate)
	}
}

func TestHeuristicPolicyTurnsTowardGoal(t *testing.T) {
	b := motion.DefaultBody()
	lim := motion.DefaultLimits()

	left := HeuristicPolicy{}.Choose(nil, motion.State{Speed: 4}, motion.Pose{X: 0, Y: 15}, b, lim, 0.25)
	if left != motion.TurnLeft {
		t.Errorf("goal to the left: chose %v, want %v", left, motion.TurnLeft)
	}

	right := HeuristicPolicy{}.Choose(nil, motion.State{Speed: 4}, motion.Pose{X: 0, Y: -15}, b, lim, 0.25)
	if right != motion.TurnRight {
		t.Errorf("goal to the right: chose %v, want %v", right, motion.TurnRight)
	}
}

func TestHeuristicPolicySameStreamSameChoices(t *testing.T) {
	s := motion.State{X: 2.1, Y: -16, Heading: math.Pi / 2, Speed: 4}
	goal := motion.Pose{X: -16, Y: 2.1}
	b := motion.DefaultBody()
	lim := motion.DefaultLimits()

	r1 := rand.New(rand.NewSource(99))
	r2 := rand.New(rand.NewSource(99))
	for i := 0; i < 50; i++ {
		a1 := HeuristicPolicy{}.Choose(r1, s, goal, b, lim, 0.25)
		a2 := HeuristicPolicy{}.Choose(r2, s, goal, b, lim, 0.25)
		if a1 != a2 {
			t.Fatalf("draw %d: %v vs %v with identical streams", i, a1, a2)
		}
		s = motion.Step(s, a1, 0.25, b, lim)
	}
}
