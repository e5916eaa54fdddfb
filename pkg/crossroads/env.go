// Package crossroads models the static intersection the vehicles share: a
// square map centered on the origin with a north-south and an east-west
// two-way road crossing in the middle. Pure geometry queries; rendering is
// left to telemetry consumers.
package crossroads

import "math"

// Env is the intersection geometry. Immutable once built and safely shared
// across concurrent planners.
type Env struct {
	Extent    float64 // half-width of the square map, meters
	LaneWidth float64 // width of a single lane, meters
}

// New builds an environment from the map extent and lane width.
func New(extent, laneWidth float64) Env {
	return Env{Extent: extent, LaneWidth: laneWidth}
}

// Contains reports whether a point lies on the map.
func (e Env) Contains(x, y float64) bool {
	return math.Abs(x) <= e.Extent && math.Abs(y) <= e.Extent
}

// OnRoad reports whether a point lies on the paved area: either road band
// (two lanes wide) or the junction box.
func (e Env) OnRoad(x, y float64) bool {
	if !e.Contains(x, y) {
		return false
	}
	return math.Abs(x) <= e.LaneWidth || math.Abs(y) <= e.LaneWidth
}

// Lane centers under right-hand traffic. Northbound traffic keeps to the
// east half of the vertical road, and so on.

// NorthboundX returns the center x of the northbound lane.
func (e Env) NorthboundX() float64 { return e.LaneWidth / 2 }

// SouthboundX returns the center x of the southbound lane.
func (e Env) SouthboundX() float64 { return -e.LaneWidth / 2 }

// EastboundY returns the center y of the eastbound lane.
func (e Env) EastboundY() float64 { return -e.LaneWidth / 2 }

// WestboundY returns the center y of the westbound lane.
func (e Env) WestboundY() float64 { return e.LaneWidth / 2 }
