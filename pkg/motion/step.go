package motion

import "math"

// Step advances one state by one maneuver over dt using bicycle-style
// integration: translate along the current heading, rotate the heading by
// Speed/Wheelbase*tan(steer)*dt, then apply clamped acceleration. Pure: the
// input is untouched and finite inputs always yield finite outputs. A
// non-positive dt only advances the timestamp.
func Step(s State, a Action, dt float64, b Body, lim Limits) State {
	next := s
	next.T = s.T + dt
	if dt <= 0 {
		return next
	}

	next.X = s.X + s.Speed*math.Cos(s.Heading)*dt
	next.Y = s.Y + s.Speed*math.Sin(s.Heading)*dt

	if steer := a.Steer(); steer != 0 && b.Wheelbase > 0 {
		yawRate := s.Speed / b.Wheelbase * math.Tan(steer)
		next.Heading = NormalizeAngle(s.Heading + yawRate*dt)
	}

	accel := clamp(a.Accel(lim), -lim.MaxDecel, lim.MaxAccel)
	next.Speed = clamp(s.Speed+accel*dt, 0, lim.MaxSpeed)
	return next
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
