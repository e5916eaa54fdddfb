package motion

import "math"

// Corners returns the oriented rectangular footprint of a body centered on
// the state's position: front-left, rear-left, rear-right, front-right.
func Corners(s State, b Body) [4][2]float64 {
	sin, cos := math.Sincos(s.Heading)
	hl, hw := b.Length/2, b.Width/2
	return [4][2]float64{
		{s.X + cos*hl - sin*hw, s.Y + sin*hl + cos*hw},
		{s.X - cos*hl - sin*hw, s.Y - sin*hl + cos*hw},
		{s.X - cos*hl + sin*hw, s.Y - sin*hl - cos*hw},
		{s.X + cos*hl + sin*hw, s.Y + sin*hl - cos*hw},
	}
}

// Overlap reports whether two oriented rectangular footprints intersect,
// via the separating-axis test on the four edge normals. Symmetric in its
// arguments; touching edges count as overlap.
func Overlap(sa State, ba Body, sb State, bb Body) bool {
	ca := Corners(sa, ba)
	cb := Corners(sb, bb)
	axes := [4][2]float64{
		{math.Cos(sa.Heading), math.Sin(sa.Heading)},
		{-math.Sin(sa.Heading), math.Cos(sa.Heading)},
		{math.Cos(sb.Heading), math.Sin(sb.Heading)},
		{-math.Sin(sb.Heading), math.Cos(sb.Heading)},
	}
	for _, ax := range axes {
		aLo, aHi := project(ax, ca)
		bLo, bHi := project(ax, cb)
		if aHi < bLo || bHi < aLo {
			return false
		}
	}
	return true
}

func project(ax [2]float64, cs [4][2]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range cs {
		d := c[0]*ax[0] + c[1]*ax[1]
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}
