package stack

import (
	"encoding/json"
	"errors"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/extraction"
	"github.com/danielegr/deep-ifs/types"
)

func buildStack(t *testing.T) *Stack {
	t.Helper()
	s := New()
	require.NoError(t, s.Add(extraction.NewLinearEncoder(3, 4, 7), []bool{true, false, true, true}))
	require.NoError(t, s.Add(extraction.NewLinearEncoder(3, 2, 8), []bool{true, true}))
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := buildStack(t)
	require.NoError(t, s.Save(dir))

	s2 := New()
	require.NoError(t, s2.Load(dir))
	require.Equal(t, s.Len(), s2.Len())
	assert.Equal(t, s.SupportDim(), s2.SupportDim())

	x := mat.NewDense(3, 3, []float64{
		0.1, -0.4, 0.9,
		1.2, 0.0, -0.7,
		-0.3, 0.5, 0.2,
	})
	f1, err := s.Features(x)
	require.NoError(t, err)
	f2, err := s2.Features(x)
	require.NoError(t, err)
	assert.True(t, mat.Equal(f1, f2), "reloaded stack must compose identical features")
}

func TestLoadedStagesAreNotTrainable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildStack(t).Save(dir))

	s := New()
	require.NoError(t, s.Load(dir))
	st, err := s.Stage(0)
	require.NoError(t, err)

	trainErr := st.Extractor.Train(mat.NewDense(1, 3, nil), mat.NewDense(1, 1, nil))
	assert.ErrorIs(t, trainErr, extraction.ErrNotTrainable)
}

func TestLoadResetsFirst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildStack(t).Save(dir))

	s := buildStack(t)
	require.Equal(t, 2, s.Len())
	require.NoError(t, s.Load(dir))
	// stages come only from the directory, not appended to the old ones
	assert.Equal(t, 2, s.Len())
}

func TestLoadCountMismatch(t *testing.T) {
	dir := t.TempDir()
	m := manifest{
		Encoders: []string{"encoder_0.bin", "encoder_1.bin"},
		Supports: []string{"support_0.json", "support_1.json", "support_2.json"},
	}
	bs, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path.Join(dir, manifestName), bs, 0644))

	s := buildStack(t)
	err = s.Load(dir)

	var loadErr *types.StackLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, 2, loadErr.Encoders)
	assert.Equal(t, 3, loadErr.Supports)
	// the stack is left in its reset state
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.SupportDim())
}

func TestLoadEmptyManifest(t *testing.T) {
	dir := t.TempDir()
	bs, err := json.Marshal(manifest{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path.Join(dir, manifestName), bs, 0644))

	s := New()
	var loadErr *types.StackLoadError
	require.True(t, errors.As(s.Load(dir), &loadErr))
	assert.Equal(t, 0, s.Len())
}

func TestLoadMissingManifest(t *testing.T) {
	s := New()
	var loadErr *types.StackLoadError
	require.True(t, errors.As(s.Load(t.TempDir()), &loadErr))
}

func TestLoadMissingStageFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildStack(t).Save(dir))
	require.NoError(t, os.Remove(path.Join(dir, "encoder_1.bin")))

	s := New()
	err := s.Load(dir)
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}
