package policies

import (
	"golang.org/x/exp/rand"

	"github.com/danielegr/deep-ifs/types"
)

// LinearValue is a linear action-value estimator over composed stack
// features. The downstream fitted value learner is an external
// collaborator; this stand-in gives the policy wrapper a decision rule
// with the right contract and a fixed feature dimensionality.
type LinearValue struct {
	dim     int
	weights [][]float64 // one row per action
	bias    []float64
}

var _ ValueEstimator = &LinearValue{}

func NewLinearValue(featureDim, actions int, seed uint64) *LinearValue {
	rng := rand.New(rand.NewSource(seed))
	w := make([][]float64, actions)
	b := make([]float64, actions)
	for a := 0; a < actions; a++ {
		w[a] = make([]float64, featureDim)
		for j := range w[a] {
			w[a][j] = rng.NormFloat64() * 0.1
		}
		b[a] = rng.NormFloat64() * 0.1
	}
	return &LinearValue{dim: featureDim, weights: w, bias: b}
}

func (v *LinearValue) Values(features []float64) ([]float64, error) {
	if len(features) != v.dim {
		return nil, &types.ShapeMismatchError{Context: "value estimator features", Want: v.dim, Got: len(features)}
	}
	out := make([]float64, len(v.weights))
	for a := range v.weights {
		s := v.bias[a]
		for j, f := range features {
			s += v.weights[a][j] * f
		}
		out[a] = s
	}
	return out, nil
}
