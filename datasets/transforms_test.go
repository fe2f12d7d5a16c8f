package datasets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/stack"
	"github.com/danielegr/deep-ifs/types"
)

// identityExtractor passes states through unchanged
type identityExtractor struct {
	dim int
}

func (e *identityExtractor) InputDim() int  { return e.dim }
func (e *identityExtractor) OutputDim() int { return e.dim }

func (e *identityExtractor) Encode(x *mat.Dense) (*mat.Dense, error) {
	_, cols := x.Dims()
	if cols != e.dim {
		return nil, &types.ShapeMismatchError{Context: "encoder input", Want: e.dim, Got: cols}
	}
	return mat.DenseCopyOf(x), nil
}

func (e *identityExtractor) Train(_, _ *mat.Dense) error { return nil }
func (e *identityExtractor) Save(_ string) error         { return nil }

// fixedResidual predicts the same matrix regardless of the features
type fixedResidual struct {
	pred *mat.Dense
}

func (m *fixedResidual) Fit(_, _ *mat.Dense) error { return nil }
func (m *fixedResidual) Predict(_ *mat.Dense) (*mat.Dense, error) {
	return mat.DenseCopyOf(m.pred), nil
}

func identityStack(t *testing.T, dim int) *stack.Stack {
	t.Helper()
	st := stack.New()
	mask := make([]bool, dim)
	for i := range mask {
		mask[i] = true
	}
	require.NoError(t, st.Add(&identityExtractor{dim: dim}, mask))
	return st
}

func TestBuildFARF(t *testing.T) {
	sars := sampleSARS()
	farf, err := BuildFARF(&identityExtractor{dim: 2}, sars)
	require.NoError(t, err)

	require.Equal(t, sars.Len(), farf.Len())
	assert.Equal(t, sars.Actions(), farf.Actions)
	assert.Equal(t, sars.Rewards(), farf.Rewards)

	// identity encoding: F mirrors S, F' mirrors S'
	for i := 0; i < sars.Len(); i++ {
		s, _, _, ss, _ := sars.Get(i)
		assert.Equal(t, []float64(s), farf.F.RawRowView(i))
		assert.Equal(t, []float64(ss), farf.FNext.RawRowView(i))
	}
}

func TestBuildFARFEmptyDataset(t *testing.T) {
	farf, err := BuildFARF(&identityExtractor{dim: 2}, NewSARS())
	require.NoError(t, err)
	assert.Equal(t, 0, farf.Len())
}

func TestBuildFARFShapeError(t *testing.T) {
	_, err := BuildFARF(&identityExtractor{dim: 5}, sampleSARS())
	var shapeErr *types.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
}

func TestTransformsPreserveRowOrder(t *testing.T) {
	d := sampleSARS()
	reversed := NewSARS()
	for i := d.Len() - 1; i >= 0; i-- {
		s, a, r, ss, _ := d.Get(i)
		reversed.Append(s, a, r, ss)
	}

	e := &identityExtractor{dim: 2}
	farf, err := BuildFARF(e, d)
	require.NoError(t, err)
	farfRev, err := BuildFARF(e, reversed)
	require.NoError(t, err)

	// reordering the input reorders the output identically
	for i := 0; i < d.Len(); i++ {
		j := d.Len() - 1 - i
		assert.Equal(t, farf.F.RawRowView(i), farfRev.F.RawRowView(j))
		assert.Equal(t, farf.Rewards[i], farfRev.Rewards[j])
	}
}

func TestBuildSFADF(t *testing.T) {
	sars := sampleSARS()
	st := identityStack(t, 2)
	candidate := &identityExtractor{dim: 2}
	support := []bool{true, false}

	sfadf, err := BuildSFADF(st, candidate, support, sars)
	require.NoError(t, err)
	require.Equal(t, sars.Len(), sfadf.Len())

	_, dCols := sfadf.D.Dims()
	assert.Equal(t, 1, dCols)
	for i := 0; i < sars.Len(); i++ {
		s, _, _, ss, _ := sars.Get(i)
		// identity stack: F mirrors the raw state
		assert.Equal(t, []float64(s), sfadf.F.RawRowView(i))
		assert.Equal(t, []float64(ss), sfadf.FNext.RawRowView(i))
		// D is the masked per-feature change, state minus next state
		assert.Equal(t, s[0]-ss[0], sfadf.D.At(i, 0))
	}
}

func TestBuildSFADFSupportMismatch(t *testing.T) {
	_, err := BuildSFADF(identityStack(t, 2), &identityExtractor{dim: 2}, []bool{true}, sampleSARS())
	var shapeErr *types.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
}

func TestBuildSARESLiteralSubtraction(t *testing.T) {
	sars := sampleSARS()
	st := identityStack(t, 2)
	sfadf, err := BuildSFADF(st, &identityExtractor{dim: 2}, []bool{true, true}, sars)
	require.NoError(t, err)

	rows, cols := sfadf.D.Dims()
	pred := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			pred.Set(i, j, 0.25*float64(i+j))
		}
	}

	sares, err := BuildSARES(&fixedResidual{pred: pred}, sfadf)
	require.NoError(t, err)
	require.Equal(t, sfadf.Len(), sares.Len())
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.Equal(t, sfadf.D.At(i, j)-pred.At(i, j), sares.Res.At(i, j))
		}
	}
}

func TestBuildSARESPredictionShape(t *testing.T) {
	sars := sampleSARS()
	st := identityStack(t, 2)
	sfadf, err := BuildSFADF(st, &identityExtractor{dim: 2}, []bool{true, true}, sars)
	require.NoError(t, err)

	wrong := mat.NewDense(sars.Len(), 5, nil)
	_, err = BuildSARES(&fixedResidual{pred: wrong}, sfadf)
	var shapeErr *types.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
}

func TestBuildFADF(t *testing.T) {
	sars := sampleSARS()
	st := identityStack(t, 2)
	candidate := &identityExtractor{dim: 2}
	sfadf, err := BuildSFADF(st, candidate, []bool{true, true}, sars)
	require.NoError(t, err)

	fadf, err := BuildFADF(st, candidate, sars, sfadf)
	require.NoError(t, err)
	require.Equal(t, sars.Len(), fadf.Len())

	// combined features: stacked features followed by candidate output
	_, cols := fadf.F.Dims()
	assert.Equal(t, 4, cols)
	for i := 0; i < sars.Len(); i++ {
		s, _, _, _, _ := sars.Get(i)
		assert.Equal(t, []float64{s[0], s[1], s[0], s[1]}, fadf.F.RawRowView(i))
	}

	// D copied row for row
	assert.True(t, mat.Equal(sfadf.D, fadf.D))
}

func TestBuildFADFRowMismatch(t *testing.T) {
	sars := sampleSARS()
	st := identityStack(t, 2)
	sfadf, err := BuildSFADF(st, &identityExtractor{dim: 2}, []bool{true, true}, sars.Slice(0, 2))
	require.NoError(t, err)

	_, err = BuildFADF(st, &identityExtractor{dim: 2}, sars, sfadf)
	assert.Error(t, err)
}

func TestBuildGlobalFARF(t *testing.T) {
	sars := sampleSARS()
	st := identityStack(t, 2)

	farf, err := BuildGlobalFARF(st, sars)
	require.NoError(t, err)
	require.Equal(t, sars.Len(), farf.Len())
	for i := 0; i < sars.Len(); i++ {
		s, _, _, _, _ := sars.Get(i)
		assert.Equal(t, []float64(s), farf.F.RawRowView(i))
	}
}
