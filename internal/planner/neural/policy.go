package neural

import (
	"fmt"
	"math/rand"
	"sync"

	gonnx "github.com/advancedclimatesystems/gonnx"
	"github.com/rs/zerolog/log"
	"gorgonia.org/tensor"

	"github.com/efreeman/crossway/internal/planner"
	"github.com/efreeman/crossway/pkg/motion"
)

// outputName is the logits tensor exported by the training pipeline. When
// the name does not match, the first output is taken instead.
const outputName = "action_logits"

// Policy scores maneuvers with an ONNX policy network. Safe for concurrent
// use: gonnx model runs are not reentrant, so inference is serialized.
type Policy struct {
	model    *gonnx.Model
	mu       sync.Mutex
	fallback planner.HeuristicPolicy
}

func (p *Policy) Name() string { return "neural" }

// Load reads an ONNX policy model from disk.
func Load(path string) (*Policy, error) {
	model, err := gonnx.NewModelFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("neural: load %s: %w", path, err)
	}
	return &Policy{model: model}, nil
}

// LoadOrHeuristic loads the model at path, falling back to the heuristic
// rollout policy when loading fails.
func LoadOrHeuristic(path string) planner.Policy {
	p, err := Load(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Policy model load failed, using heuristic rollouts")
		return planner.HeuristicPolicy{}
	}
	log.Info().Str("path", path).Msg("Policy model loaded")
	return p
}

// Choose encodes the state, runs the network, and takes the argmax
// maneuver. Any inference problem falls back to the heuristic choice for
// this one call rather than failing the search.
func (p *Policy) Choose(rng *rand.Rand, s motion.State, goal motion.Pose, b motion.Body, lim motion.Limits, dt float64) motion.Action {
	features := Encode(s, goal, lim)
	in := tensor.New(
		tensor.WithShape(1, NumFeatures),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(features),
	)

	p.mu.Lock()
	outputs, err := p.model.Run(gonnx.Tensors{"features": in})
	p.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("Policy inference failed, using heuristic choice")
		return p.fallback.Choose(rng, s, goal, b, lim, dt)
	}

	out, ok := outputs[outputName]
	if !ok {
		for _, v := range outputs {
			out = v
			break
		}
	}
	if out == nil {
		log.Warn().Msg("Policy model produced no outputs, using heuristic choice")
		return p.fallback.Choose(rng, s, goal, b, lim, dt)
	}

	logits := toFloat32(out.Data())
	if len(logits) < motion.NumActions {
		log.Warn().Int("len", len(logits)).Msg("Policy output too short, using heuristic choice")
		return p.fallback.Choose(rng, s, goal, b, lim, dt)
	}
	return motion.Action(argmax(logits[:motion.NumActions]))
}

func toFloat32(data any) []float32 {
	switch d := data.(type) {
	case []float32:
		return d
	case []float64:
		f32 := make([]float32, len(d))
		for i, v := range d {
			f32[i] = float32(v)
		}
		return f32
	default:
		return nil
	}
}

func argmax(xs []float32) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}
