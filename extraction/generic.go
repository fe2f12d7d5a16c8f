package extraction

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/types"
)

// GenericEncoder is a reload-only extractor reconstructed from a saved
// weights file. It encodes and saves like the encoder it was persisted
// from but rejects training.
type GenericEncoder struct {
	w encoderWeights
}

var _ types.Extractor = &GenericEncoder{}

// LoadEncoder reads a weights file written by any encoder in this
// package and returns a non-trainable instance.
func LoadEncoder(path string) (*GenericEncoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening encoder weights %s: %w", path, err)
	}
	defer f.Close()

	g := &GenericEncoder{}
	if err := gob.NewDecoder(f).Decode(&g.w); err != nil {
		return nil, fmt.Errorf("decoding encoder weights %s: %w", path, err)
	}
	if g.w.In <= 0 || g.w.Out <= 0 || len(g.w.P) != g.w.In*g.w.Out ||
		len(g.w.C) != g.w.Out || len(g.w.Scale) != g.w.Out {
		return nil, fmt.Errorf("encoder weights %s are malformed", path)
	}
	return g, nil
}

func (g *GenericEncoder) InputDim() int  { return g.w.In }
func (g *GenericEncoder) OutputDim() int { return g.w.Out }

func (g *GenericEncoder) Encode(x *mat.Dense) (*mat.Dense, error) {
	return g.w.encode(x)
}

func (g *GenericEncoder) Train(_, _ *mat.Dense) error {
	return ErrNotTrainable
}

func (g *GenericEncoder) Save(path string) error {
	return saveWeights(path, &g.w)
}

func saveWeights(path string, w *encoderWeights) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating encoder weights %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(w); err != nil {
		return fmt.Errorf("writing encoder weights %s: %w", path, err)
	}
	return nil
}
