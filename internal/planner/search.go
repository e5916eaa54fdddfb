package planner

import (
	"math"
	"math/bits"
	"math/rand"
	"time"

	"github.com/efreeman/crossway/pkg/motion"
)

const noChild = int32(-1)

// fullMask has one bit per maneuver in the action set.
const fullMask = uint8(1<<motion.NumActions - 1)

// arenaPrealloc caps the arena's initial capacity. Deadline-bounded searches
// may configure enormous iteration budgets; the arena grows on demand past
// this.
const arenaPrealloc = 4096

// goalBonus multiplies the progress weight when a rollout reaches the goal.
const goalBonus = 2.0

// node is one search-tree entry. Nodes live in the search's arena slice and
// reference each other by index, so a finished tree is freed in one piece.
type node struct {
	state    motion.State
	parent   int32
	children [motion.NumActions]int32
	action   motion.Action // maneuver that produced this node
	depth    int16
	terminal bool
	untried  uint8 // bitmask of maneuvers not yet expanded
	visits   int
	value    float64
}

// search is the scratch state of one tree search. Built fresh per planWith
// call, never shared between goroutines.
type search struct {
	p        *Planner
	rng      *rand.Rand
	ego      Agent
	others   []Agent
	pred     [][]motion.State // predicted trajectory per other, index = depth
	deadline time.Time
	nodes    []node
}

// run grows the tree for up to iters iterations and extracts the decision.
// The most-visited root child wins; ties break by higher mean value, then by
// lower maneuver ordinal. A childless root yields the fallback.
func (s *search) run(iters int) Decision {
	s.nodes = make([]node, 0, min(iters+1, arenaPrealloc))
	rootUntried := uint8(0)
	if s.p.cfg.MaxDepth > 0 {
		rootUntried = fullMask
	}
	s.addNode(s.ego.State, noChild, motion.Maintain, 0, rootUntried)
	if s.p.cfg.MaxDepth == 0 {
		iters = 0
	}

	spent := 0
	for spent < iters {
		if spent%deadlineCheckEvery == 0 && !s.deadline.IsZero() && time.Now().After(s.deadline) {
			break
		}
		s.iterate()
		spent++
	}

	best := s.bestVisitChild(0)
	d := Decision{
		Action:     FallbackAction,
		Iterations: spent,
		Fallback:   best == noChild,
	}
	if best != noChild {
		d.Action = s.nodes[best].action
	}
	d.Expected = s.bestPath()
	return d
}

// iterate runs one select/expand/rollout/backpropagate cycle.
func (s *search) iterate() {
	idx := int32(0)
	for {
		n := &s.nodes[idx]
		if n.terminal || n.untried != 0 {
			break
		}
		next := s.bestUCT(idx)
		if next == noChild {
			break
		}
		idx = next
	}

	if n := &s.nodes[idx]; !n.terminal && n.untried != 0 {
		if child, ok := s.expand(idx); ok {
			idx = child
		}
	}

	value := s.rollout(idx)

	for i := idx; i != noChild; i = s.nodes[i].parent {
		s.nodes[i].visits++
		s.nodes[i].value += value
	}
}

// bestUCT picks the child maximizing mean value plus the exploration term.
// Strict comparison keeps ties on the lowest maneuver ordinal.
func (s *search) bestUCT(idx int32) int32 {
	n := &s.nodes[idx]
	logN := math.Log(float64(n.visits))
	best := noChild
	bestScore := math.Inf(-1)
	for a := 0; a < motion.NumActions; a++ {
		ci := n.children[a]
		if ci == noChild {
			continue
		}
		c := &s.nodes[ci]
		score := c.value/float64(c.visits) + s.p.cfg.Exploration*math.Sqrt(logN/float64(c.visits))
		if score > bestScore {
			bestScore = score
			best = ci
		}
	}
	return best
}

// expand pops untried maneuvers until one produces a child that stays on the
// map. Maneuvers that would leave the map are consumed without creating a
// node, so a root where every maneuver exits the map ends up childless and
// the caller falls back.
func (s *search) expand(parentIdx int32) (int32, bool) {
	for s.nodes[parentIdx].untried != 0 {
		a := s.popUntried(parentIdx)
		parent := s.nodes[parentIdx]
		child := motion.Step(parent.state, a, s.p.cfg.Dt, s.ego.Body, s.ego.Limits)
		if !s.p.cfg.Env.Contains(child.X, child.Y) {
			continue
		}

		depth := parent.depth + 1
		untried := uint8(0)
		terminal := int(depth) >= s.p.cfg.MaxDepth ||
			s.collides(child, int(depth)) ||
			motion.AtGoal(child, s.ego.Goal, s.p.cfg.GoalTolerance)
		if !terminal {
			untried = fullMask
		}

		ci := s.addNode(child, parentIdx, a, depth, untried)
		s.nodes[ci].terminal = terminal
		s.nodes[parentIdx].children[a] = ci
		return ci, true
	}
	return 0, false
}

// popUntried removes and returns a uniformly random maneuver from the node's
// untried set.
func (s *search) popUntried(idx int32) motion.Action {
	n := &s.nodes[idx]
	k := 0
	if count := bits.OnesCount8(n.untried); count > 1 {
		k = s.rng.Intn(count)
	}
	for a := 0; a < motion.NumActions; a++ {
		bit := uint8(1) << a
		if n.untried&bit == 0 {
			continue
		}
		if k == 0 {
			n.untried &^= bit
			return motion.Action(a)
		}
		k--
	}
	return FallbackAction
}

// rollout plays the default policy from the node to the horizon and returns
// the accumulated reward, normalized by the search depth so the exploration
// constant keeps a stable scale.
func (s *search) rollout(idx int32) float64 {
	n := s.nodes[idx]
	cur := n.state
	depth := int(n.depth)
	total := 0.0
	done := n.terminal

	if n.parent != noChild {
		r, term := s.stepReward(s.nodes[n.parent].state, cur, n.action, depth)
		total = r
		done = done || term
	}

	for !done && depth < s.p.cfg.MaxDepth {
		a := s.p.cfg.Policy.Choose(s.rng, cur, s.ego.Goal, s.ego.Body, s.ego.Limits, s.p.cfg.Dt)
		next := motion.Step(cur, a, s.p.cfg.Dt, s.ego.Body, s.ego.Limits)
		depth++
		r, term := s.stepReward(cur, next, a, depth)
		total += r
		cur = next
		done = term
	}

	if s.p.cfg.MaxDepth > 0 {
		total /= float64(s.p.cfg.MaxDepth)
	}
	return total
}

// stepReward scores one transition of the ego against the predicted world at
// the given depth. The boolean reports a terminal outcome: leaving the map,
// colliding, or reaching the goal.
func (s *search) stepReward(prev, cur motion.State, a motion.Action, depth int) (float64, bool) {
	w := s.p.cfg.Weights
	norm := s.ego.Limits.MaxSpeed * s.p.cfg.Dt
	r := 0.0
	if norm > 0 {
		r = w.Progress * (prev.DistanceTo(s.ego.Goal) - cur.DistanceTo(s.ego.Goal)) / norm
	}
	if a == motion.Brake {
		r -= w.Comfort
	}
	if !s.p.cfg.Env.Contains(cur.X, cur.Y) {
		return r - w.Collision, true
	}
	if !s.p.cfg.Env.OnRoad(cur.X, cur.Y) {
		r -= w.OffRoad
	}
	if s.collides(cur, depth) {
		return r - w.Collision, true
	}
	if s.tooClose(cur, depth) {
		r -= w.Proximity
	}
	if motion.AtGoal(cur, s.ego.Goal, s.p.cfg.GoalTolerance) {
		return r + w.Progress*goalBonus, true
	}
	return r, false
}

// collides reports physical-body overlap between the ego state and any
// predicted other at the given depth.
func (s *search) collides(cur motion.State, depth int) bool {
	for i := range s.others {
		if motion.Overlap(cur, s.ego.Body, s.predState(i, depth), s.others[i].Body) {
			return true
		}
	}
	return false
}

// tooClose reports safety-envelope overlap with any predicted other.
func (s *search) tooClose(cur motion.State, depth int) bool {
	for i := range s.others {
		if motion.Overlap(cur, s.p.cfg.Envelope, s.predState(i, depth), s.p.cfg.Envelope) {
			return true
		}
	}
	return false
}

// predState looks up the predicted state of others[i] at a search depth,
// holding the last predicted state past the trajectory end.
func (s *search) predState(i, depth int) motion.State {
	traj := s.pred[i]
	if depth < len(traj) {
		return traj[depth]
	}
	return traj[len(traj)-1]
}

// bestVisitChild returns the child of idx with the highest visit count, ties
// broken by higher mean value, then by lower maneuver ordinal. noChild when
// the node has no children.
func (s *search) bestVisitChild(idx int32) int32 {
	n := &s.nodes[idx]
	best := noChild
	bestVisits := -1
	bestMean := math.Inf(-1)
	for a := 0; a < motion.NumActions; a++ {
		ci := n.children[a]
		if ci == noChild {
			continue
		}
		c := &s.nodes[ci]
		mean := c.value / float64(max(c.visits, 1))
		if c.visits > bestVisits || (c.visits == bestVisits && mean > bestMean) {
			best = ci
			bestVisits = c.visits
			bestMean = mean
		}
	}
	return best
}

// bestPath walks most-visited children from the root and pads the result to
// MaxDepth+1 states by repeating the last maneuver (the fallback when the
// root is childless). The current state is always first.
func (s *search) bestPath() []motion.State {
	path := make([]motion.State, 0, s.p.cfg.MaxDepth+1)
	path = append(path, s.nodes[0].state)
	last := FallbackAction
	for idx := int32(0); ; {
		next := s.bestVisitChild(idx)
		if next == noChild {
			break
		}
		path = append(path, s.nodes[next].state)
		last = s.nodes[next].action
		idx = next
	}
	cur := path[len(path)-1]
	for len(path) < s.p.cfg.MaxDepth+1 {
		cur = motion.Step(cur, last, s.p.cfg.Dt, s.ego.Body, s.ego.Limits)
		path = append(path, cur)
	}
	return path
}

// addNode appends a node to the arena and returns its index.
func (s *search) addNode(st motion.State, parent int32, a motion.Action, depth int16, untried uint8) int32 {
	n := node{
		state:   st,
		parent:  parent,
		action:  a,
		depth:   depth,
		untried: untried,
	}
	for i := range n.children {
		n.children[i] = noChild
	}
	s.nodes = append(s.nodes, n)
	return int32(len(s.nodes) - 1)
}
