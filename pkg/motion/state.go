// Package motion provides planar vehicle states, the discrete maneuver set,
// the pure kinematic transition shared by search rollouts and committed
// simulation steps, and the oriented-rectangle collision test.
package motion

import "math"

// State is one vehicle's planar pose plus scalar speed at a simulated instant.
type State struct {
	X       float64 // meters
	Y       float64 // meters
	Heading float64 // radians, normalized to (-pi, pi]
	Speed   float64 // m/s, never negative
	T       float64 // simulated seconds since round start
}

// Pose is a position with a desired heading, used for goals.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// Limits bound what a vehicle can do in one step.
type Limits struct {
	MaxSpeed float64 // m/s
	MaxAccel float64 // m/s^2
	MaxDecel float64 // m/s^2, positive magnitude
}

// Body is a vehicle's rigid rectangular footprint, centered on its position.
type Body struct {
	Length    float64
	Width     float64
	Wheelbase float64
}

// DefaultBody returns the standard passenger-car footprint.
func DefaultBody() Body {
	return Body{Length: 5.0, Width: 2.0, Wheelbase: 2.8}
}

// DefaultEnvelope returns the inflated safety box used for proximity
// penalties. It is never used for the collision verdict.
func DefaultEnvelope() Body {
	return Body{Length: 8.0, Width: 2.4, Wheelbase: 2.8}
}

// DefaultLimits returns the standard kinematic clamps.
func DefaultLimits() Limits {
	return Limits{MaxSpeed: 12.0, MaxAccel: 2.5, MaxDecel: 5.0}
}

// NormalizeAngle wraps an angle to (-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// DistanceTo returns the planar distance from the state's position to a pose.
func (s State) DistanceTo(g Pose) float64 {
	return math.Hypot(g.X-s.X, g.Y-s.Y)
}

// AtGoal reports whether the state's position is within tol of the goal.
func AtGoal(s State, g Pose, tol float64) bool {
	return s.DistanceTo(g) <= tol
}

// Valid reports whether a state is finite and within bound of the origin.
// Callers pass a bound far outside the map, so only a kinematics defect can
// fail a state that started legal.
func Valid(s State, bound float64) bool {
	for _, v := range [5]float64{s.X, s.Y, s.Heading, s.Speed, s.T} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(s.X) <= bound && math.Abs(s.Y) <= bound && s.Speed >= 0
}
