package motion

// Action is one discrete maneuver a planner can commit for a single tick.
// The declaration order is the fixed priority used to break selection ties
// deterministically.
type Action int

const (
	Maintain Action = iota
	TurnLeft
	TurnRight
	Accelerate
	Decelerate
	Brake
)

// NumActions is the size of the maneuver set.
const NumActions = 6

// steerAngle is the fixed front-wheel angle of the steer maneuvers. With the
// default wheelbase it gives roughly a lane-width turning radius.
const steerAngle = 0.6

// Accel returns the action's longitudinal acceleration under lim.
func (a Action) Accel(lim Limits) float64 {
	switch a {
	case Accelerate:
		return lim.MaxAccel
	case Decelerate:
		return -lim.MaxAccel
	case Brake:
		return -lim.MaxDecel
	default:
		return 0
	}
}

// Steer returns the action's front-wheel steering angle in radians.
func (a Action) Steer() float64 {
	switch a {
	case TurnLeft:
		return steerAngle
	case TurnRight:
		return -steerAngle
	default:
		return 0
	}
}

var actionNames = [NumActions]string{
	"maintain", "turn_left", "turn_right", "accelerate", "decelerate", "brake",
}

func (a Action) String() string {
	if a < 0 || int(a) >= NumActions {
		return "unknown"
	}
	return actionNames[a]
}

// Actions returns every maneuver in priority order.
func Actions() [NumActions]Action {
	return [NumActions]Action{Maintain, TurnLeft, TurnRight, Accelerate, Decelerate, Brake}
}
