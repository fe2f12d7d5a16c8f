package extraction

import (
	"errors"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/types"
)

// ridge regularization for the training heads
const ridgeLambda = 1e-3

// ErrNotTrainable is returned by encoders that were reloaded from disk.
// The support mask was chosen against the original trained weights, so
// retraining a reloaded encoder is meaningless.
var ErrNotTrainable = errors.New("encoder was reloaded from disk and is not trainable")

// encoderWeights is the serialized form shared by LinearEncoder and
// GenericEncoder.
type encoderWeights struct {
	In    int
	Out   int
	P     []float64 // Out x In projection, row major
	C     []float64 // Out offsets
	Scale []float64 // Out per-feature scales, shaped by training
}

func (w *encoderWeights) encode(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != w.In {
		return nil, &types.ShapeMismatchError{Context: "encoder input", Want: w.In, Got: cols}
	}
	p := mat.NewDense(w.Out, w.In, w.P)
	var z mat.Dense
	z.Mul(x, p.T())
	out := mat.NewDense(rows, w.Out, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < w.Out; j++ {
			out.Set(i, j, math.Tanh(z.At(i, j)+w.C[j])*w.Scale[j])
		}
	}
	return out, nil
}

// LinearEncoder is the trainable reference extractor: a fixed random
// projection with a tanh nonlinearity and per-feature scales. Training
// fits a ridge head from the features to the targets and reshapes the
// scales by each feature's head weight, so features that carry the
// target gain variance and survive support selection.
type LinearEncoder struct {
	w encoderWeights
}

var _ types.Extractor = &LinearEncoder{}

func NewLinearEncoder(inputDim, outputDim int, seed uint64) *LinearEncoder {
	rng := rand.New(rand.NewSource(seed))
	p := make([]float64, outputDim*inputDim)
	sigma := 1.0 / math.Sqrt(float64(inputDim))
	for i := range p {
		p[i] = rng.NormFloat64() * sigma
	}
	c := make([]float64, outputDim)
	for i := range c {
		c[i] = rng.NormFloat64() * 0.1
	}
	scale := make([]float64, outputDim)
	for i := range scale {
		scale[i] = 1.0
	}
	return &LinearEncoder{w: encoderWeights{
		In:    inputDim,
		Out:   outputDim,
		P:     p,
		C:     c,
		Scale: scale,
	}}
}

func (e *LinearEncoder) InputDim() int  { return e.w.In }
func (e *LinearEncoder) OutputDim() int { return e.w.Out }

func (e *LinearEncoder) Encode(x *mat.Dense) (*mat.Dense, error) {
	return e.w.encode(x)
}

// Train fits the encoder against targets y (any column count).
func (e *LinearEncoder) Train(x, y *mat.Dense) error {
	xr, _ := x.Dims()
	yr, yc := y.Dims()
	if xr != yr {
		return &types.ShapeMismatchError{Context: "training rows", Want: xr, Got: yr}
	}

	// raw features, without the current scales
	raw := make([]float64, e.w.Out)
	for i := range raw {
		raw[i] = e.w.Scale[i]
		e.w.Scale[i] = 1.0
	}
	z, err := e.w.encode(x)
	if err != nil {
		for i := range raw {
			e.w.Scale[i] = raw[i]
		}
		return err
	}

	head, err := ridge(z, y)
	if err != nil {
		for i := range raw {
			e.w.Scale[i] = raw[i]
		}
		return err
	}

	// relevance of feature j is the norm of its head row
	scales := make([]float64, e.w.Out)
	total := 0.0
	for j := 0; j < e.w.Out; j++ {
		s := 0.0
		for k := 0; k < yc; k++ {
			v := head.At(j, k)
			s += v * v
		}
		scales[j] = math.Sqrt(s)
		total += scales[j]
	}
	if total == 0 {
		// all-zero targets carry no relevance information; keep the
		// previous scales
		for i := range raw {
			e.w.Scale[i] = raw[i]
		}
		return nil
	}
	// normalize to mean 1 to keep feature magnitudes stable
	mean := total / float64(e.w.Out)
	for j := range scales {
		e.w.Scale[j] = scales[j] / mean
	}
	return nil
}

func (e *LinearEncoder) Save(path string) error {
	return saveWeights(path, &e.w)
}

// ridge solves (Z'Z + lambda I) H = Z'Y for H
func ridge(z, y *mat.Dense) (*mat.Dense, error) {
	_, zc := z.Dims()
	var g mat.Dense
	g.Mul(z.T(), z)
	for i := 0; i < zc; i++ {
		g.Set(i, i, g.At(i, i)+ridgeLambda)
	}
	var zty mat.Dense
	zty.Mul(z.T(), y)
	var h mat.Dense
	if err := h.Solve(&g, &zty); err != nil {
		return nil, err
	}
	return &h, nil
}
