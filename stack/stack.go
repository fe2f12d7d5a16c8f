package stack

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/types"
)

// Stage is one accepted (extractor, support mask) pair. Stages are
// immutable once added: weights and support are fixed for the lifetime
// of the stack.
type Stage struct {
	Extractor types.Extractor
	Support   []bool
}

// SupportDim is the number of selected features in the stage
func (s *Stage) SupportDim() int {
	n := 0
	for _, b := range s.Support {
		if b {
			n++
		}
	}
	return n
}

// Stack is the ordered, append-only sequence of accepted stages. Stage
// order defines the concatenation order of the composed feature vector;
// a persisted stack reloads its stages in the exact order they were
// added. The stack is read-only during a collection round and mutated
// only between rounds by the coordinating goroutine.
type Stack struct {
	stages     []*Stage
	supportDim int
}

func New() *Stack {
	return &Stack{stages: make([]*Stage, 0)}
}

// Add appends a new stage. The support mask length must equal the
// extractor's output dimension.
func (s *Stack) Add(e types.Extractor, support []bool) error {
	if len(support) != e.OutputDim() {
		return &types.ShapeMismatchError{
			Context: fmt.Sprintf("support mask for stage %d", len(s.stages)),
			Want:    e.OutputDim(),
			Got:     len(support),
		}
	}
	mask := make([]bool, len(support))
	copy(mask, support)
	st := &Stage{Extractor: e, Support: mask}
	s.stages = append(s.stages, st)
	s.supportDim += st.SupportDim()
	return nil
}

func (s *Stack) Len() int {
	return len(s.stages)
}

// Stage returns the stage at the given index
func (s *Stack) Stage(index int) (*Stage, error) {
	if index < 0 || index >= len(s.stages) {
		return nil, fmt.Errorf("stage index %d out of range [0,%d)", index, len(s.stages))
	}
	return s.stages[index], nil
}

// SupportDim is the total selected-feature count across all stages
func (s *Stack) SupportDim() int {
	return s.supportDim
}

// StageSupportDim is the selected-feature count of one stage
func (s *Stack) StageSupportDim(index int) (int, error) {
	st, err := s.Stage(index)
	if err != nil {
		return 0, err
	}
	return st.SupportDim(), nil
}

// Features composes a batch of states (one row per sample) into the
// stacked feature matrix: each stage's masked output, concatenated in
// stage order. An empty stack (or all-false supports) yields a nil
// matrix, meaning zero feature columns.
func (s *Stack) Features(x *mat.Dense) (*mat.Dense, error) {
	var out *mat.Dense
	for i, st := range s.stages {
		enc, err := st.Extractor.Encode(x)
		if err != nil {
			return nil, fmt.Errorf("encoding with stage %d: %w", i, err)
		}
		out = HStack(out, MaskColumns(enc, st.Support))
	}
	return out, nil
}

// FeaturesOne composes a single state into a flat feature vector. An
// empty stack yields an empty slice.
func (s *Stack) FeaturesOne(state types.State) ([]float64, error) {
	if len(s.stages) == 0 {
		return []float64{}, nil
	}
	x := mat.NewDense(1, len(state), state)
	f, err := s.Features(x)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return []float64{}, nil
	}
	return f.RawRowView(0), nil
}

// StageFeatures is Features restricted to the stage at the given index,
// for residual computation against an older stage's representation.
func (s *Stack) StageFeatures(x *mat.Dense, index int) (*mat.Dense, error) {
	st, err := s.Stage(index)
	if err != nil {
		return nil, err
	}
	enc, err := st.Extractor.Encode(x)
	if err != nil {
		return nil, fmt.Errorf("encoding with stage %d: %w", index, err)
	}
	return MaskColumns(enc, st.Support), nil
}

// Reset releases every owned extractor and empties the stack. The state
// afterwards is identical to a freshly constructed stack.
func (s *Stack) Reset() {
	s.stages = make([]*Stage, 0)
	s.supportDim = 0
}

// MaskColumns keeps only the columns of x whose support entry is true.
// Returns nil when no column is selected.
func MaskColumns(x *mat.Dense, support []bool) *mat.Dense {
	rows, cols := x.Dims()
	kept := make([]int, 0, cols)
	for j, b := range support {
		if b {
			kept = append(kept, j)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	out := mat.NewDense(rows, len(kept), nil)
	for i := 0; i < rows; i++ {
		for k, j := range kept {
			out.Set(i, k, x.At(i, j))
		}
	}
	return out
}

// HStack concatenates two matrices column-wise, treating nil as a
// zero-width matrix.
func HStack(a, b *mat.Dense) *mat.Dense {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	ar, ac := a.Dims()
	_, bc := b.Dims()
	out := mat.NewDense(ar, ac+bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			out.Set(i, j, a.At(i, j))
		}
		for j := 0; j < bc; j++ {
			out.Set(i, ac+j, b.At(i, j))
		}
	}
	return out
}
