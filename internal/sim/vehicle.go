package sim

import (
	"math/rand"

	"github.com/efreeman/crossway/internal/config"
	"github.com/efreeman/crossway/internal/planner"
	"github.com/efreeman/crossway/pkg/motion"
)

// Vehicle is the runtime state of one fleet member. The planning fan-out
// writes each vehicle only from its own task, so no locking is needed as
// long as ticks stay bulk-synchronous.
type Vehicle struct {
	ID     string
	Color  string
	Level  int
	Body   motion.Body
	Limits motion.Limits
	Goal   motion.Pose

	init config.InitConfig

	State    motion.State
	AtGoal   bool
	Action   motion.Action
	Expected []motion.State
	Fallback bool
}

func newVehicle(name string, vc config.VehicleConfig, cfg config.Config) *Vehicle {
	return &Vehicle{
		ID:     name,
		Color:  vc.Color,
		Level:  vc.Level,
		Body:   cfg.MotionBody(),
		Limits: cfg.MotionLimits(),
		Goal:   motion.Pose{X: vc.Target.X, Y: vc.Target.Y, Heading: vc.Target.Heading},
		init:   vc.Init,
	}
}

// Reset puts the vehicle back at its spawn pose with a fresh speed draw from
// the configured range.
func (v *Vehicle) Reset(rng *rand.Rand) {
	speed := v.init.SpeedMin
	if spread := v.init.SpeedMax - v.init.SpeedMin; spread > 0 {
		speed += rng.Float64() * spread
	}
	v.State = motion.State{X: v.init.X, Y: v.init.Y, Heading: v.init.Heading, Speed: speed}
	v.AtGoal = false
	v.Action = motion.Maintain
	v.Expected = nil
	v.Fallback = false
}

// agent snapshots the vehicle for the planner.
func (v *Vehicle) agent() planner.Agent {
	return planner.Agent{
		ID:     v.ID,
		Level:  v.Level,
		State:  v.State,
		Goal:   v.Goal,
		Body:   v.Body,
		Limits: v.Limits,
		AtGoal: v.AtGoal,
	}
}

// apply installs a planning decision. Called from the vehicle's own planning
// task only.
func (v *Vehicle) apply(d planner.Decision) {
	v.Action = d.Action
	v.Expected = d.Expected
	v.Fallback = d.Fallback
}

// park freezes the vehicle in place once its goal is reached.
func (v *Vehicle) park() {
	v.AtGoal = true
	v.State.Speed = 0
	v.Action = motion.Maintain
	v.Expected = nil
	v.Fallback = false
}
