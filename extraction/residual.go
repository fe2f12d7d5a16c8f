package extraction

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/types"
)

// LinearResidual predicts dynamics deltas from stacked features with a
// ridge-regularized linear map (intercept included).
type LinearResidual struct {
	theta *mat.Dense // (featureDim+1) x targetDim
	in    int
	out   int
}

var _ types.ResidualModel = &LinearResidual{}

func NewLinearResidual() *LinearResidual {
	return &LinearResidual{}
}

func (m *LinearResidual) Fit(f, d *mat.Dense) error {
	fr, fc := f.Dims()
	dr, dc := d.Dims()
	if fr != dr {
		return &types.ShapeMismatchError{Context: "residual fit rows", Want: fr, Got: dr}
	}
	if fr == 0 {
		return errors.New("residual fit: empty dataset")
	}

	a := withIntercept(f)
	theta, err := ridge(a, d)
	if err != nil {
		return err
	}
	m.theta = theta
	m.in = fc
	m.out = dc
	return nil
}

func (m *LinearResidual) Predict(f *mat.Dense) (*mat.Dense, error) {
	if m.theta == nil {
		return nil, errors.New("residual model is not fitted")
	}
	_, fc := f.Dims()
	if fc != m.in {
		return nil, &types.ShapeMismatchError{Context: "residual predict features", Want: m.in, Got: fc}
	}
	a := withIntercept(f)
	var d mat.Dense
	d.Mul(a, m.theta)
	return &d, nil
}

// withIntercept appends a constant 1 column
func withIntercept(f *mat.Dense) *mat.Dense {
	rows, cols := f.Dims()
	a := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, f.At(i, j))
		}
		a.Set(i, cols, 1.0)
	}
	return a
}
