// Package neural runs a learned rollout policy through gonnx, a pure Go
// ONNX runtime. The model scores the six maneuvers from a small ego-frame
// feature vector; search code falls back to the heuristic policy whenever
// the model is missing or inference fails.
package neural

import (
	"math"

	"github.com/efreeman/crossway/pkg/motion"
)

// NumFeatures is the length of the policy input vector.
const NumFeatures = 8

// normScale normalizes goal offsets and distances. Matches the Python
// training encoder, which clips scenarios to a 50m working radius.
const normScale = 50.0

// Feature offset constants matching the Python encoding.
const (
	FeatGoalOffset  = 0 // [0:2] goal offset in the ego frame, / normScale
	FeatGoalDist    = 2 // straight-line goal distance, / normScale
	FeatGoalBearing = 3 // [3:5] cos, sin of the bearing to the goal in the ego frame
	FeatHeadingErr  = 5 // [5:7] cos, sin of goal heading minus ego heading
	FeatSpeed       = 7 // speed / MaxSpeed
)

// Encode builds the policy input for one state. The frame is ego-relative,
// so the encoding is invariant under rigid motions of the whole scene.
func Encode(s motion.State, goal motion.Pose, lim motion.Limits) []float32 {
	f := make([]float32, NumFeatures)

	dx := goal.X - s.X
	dy := goal.Y - s.Y
	cos := math.Cos(-s.Heading)
	sin := math.Sin(-s.Heading)
	rx := dx*cos - dy*sin
	ry := dx*sin + dy*cos

	f[FeatGoalOffset] = float32(rx / normScale)
	f[FeatGoalOffset+1] = float32(ry / normScale)

	dist := math.Hypot(dx, dy)
	f[FeatGoalDist] = float32(dist / normScale)
	if dist > 0 {
		f[FeatGoalBearing] = float32(rx / dist)
		f[FeatGoalBearing+1] = float32(ry / dist)
	} else {
		f[FeatGoalBearing] = 1
	}

	herr := motion.NormalizeAngle(goal.Heading - s.Heading)
	f[FeatHeadingErr] = float32(math.Cos(herr))
	f[FeatHeadingErr+1] = float32(math.Sin(herr))

	if lim.MaxSpeed > 0 {
		f[FeatSpeed] = float32(s.Speed / lim.MaxSpeed)
	}
	return f
}
