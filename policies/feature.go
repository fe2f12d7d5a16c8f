package policies

import (
	"errors"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/danielegr/deep-ifs/stack"
	"github.com/danielegr/deep-ifs/types"
)

// ValueEstimator scores the discrete actions from a composed feature
// vector, one value per action.
type ValueEstimator interface {
	Values(features []float64) ([]float64, error)
}

// EpsilonGreedyPolicy maps a raw state through the feature stack and
// picks the best-valued action, exploring uniformly with probability
// epsilon. The estimator only ever sees composed stack features, never
// raw states.
type EpsilonGreedyPolicy struct {
	stack     *stack.Stack
	estimator ValueEstimator
	epsilon   float64
	rng       *rand.Rand
}

var _ types.Policy = &EpsilonGreedyPolicy{}

func NewEpsilonGreedyPolicy(st *stack.Stack, estimator ValueEstimator, epsilon float64, seed uint64) *EpsilonGreedyPolicy {
	return &EpsilonGreedyPolicy{
		stack:     st,
		estimator: estimator,
		epsilon:   epsilon,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (p *EpsilonGreedyPolicy) Act(state types.State) (int, error) {
	phi, err := p.stack.FeaturesOne(state)
	if err != nil {
		return 0, err
	}
	vals, err := p.estimator.Values(phi)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, errors.New("value estimator returned no action values")
	}
	if p.rng.Float64() < p.epsilon {
		return p.rng.Intn(len(vals)), nil
	}
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best, nil
}

// Snapshot shares the stack and estimator (read-only during a
// collection round) and gives the copy an independent random stream.
func (p *EpsilonGreedyPolicy) Snapshot() types.Policy {
	return &EpsilonGreedyPolicy{
		stack:     p.stack,
		estimator: p.estimator,
		epsilon:   p.epsilon,
		rng:       rand.New(rand.NewSource(p.rng.Uint64())),
	}
}

// SoftmaxPolicy samples actions with probability proportional to the
// exponentiated action values.
type SoftmaxPolicy struct {
	stack     *stack.Stack
	estimator ValueEstimator
	rng       *rand.Rand
}

var _ types.Policy = &SoftmaxPolicy{}

func NewSoftmaxPolicy(st *stack.Stack, estimator ValueEstimator, seed uint64) *SoftmaxPolicy {
	return &SoftmaxPolicy{
		stack:     st,
		estimator: estimator,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (p *SoftmaxPolicy) Act(state types.State) (int, error) {
	phi, err := p.stack.FeaturesOne(state)
	if err != nil {
		return 0, err
	}
	vals, err := p.estimator.Values(phi)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, errors.New("value estimator returned no action values")
	}

	max := vals[0]
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	weights := make([]float64, len(vals))
	for i, v := range vals {
		weights[i] = math.Exp(v - max)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	i, ok := sampleuv.NewWeighted(weights, p.rng).Take()
	if !ok {
		return 0, errors.New("softmax sampling failed")
	}
	return i, nil
}

func (p *SoftmaxPolicy) Snapshot() types.Policy {
	return &SoftmaxPolicy{
		stack:     p.stack,
		estimator: p.estimator,
		rng:       rand.New(rand.NewSource(p.rng.Uint64())),
	}
}
