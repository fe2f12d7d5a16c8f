package datasets

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/stack"
	"github.com/danielegr/deep-ifs/types"
)

// The transforms in this file are pure: they never mutate their inputs
// and are deterministic given the same stack state and residual model.
// Every transform preserves the row count and row order of its input:
// row i of the output is derived solely from row i of the input.

// FARF is a transition dataset re-expressed in feature space with the
// reward as target.
type FARF struct {
	F       *mat.Dense
	Actions []int
	Rewards []float64
	FNext   *mat.Dense
}

func (d *FARF) Len() int { return len(d.Actions) }

// SFADF pairs raw states with stacked features, per-stage dynamics
// deltas and next stacked features.
type SFADF struct {
	States  []types.State
	F       *mat.Dense
	Actions []int
	D       *mat.Dense
	FNext   *mat.Dense
}

func (d *SFADF) Len() int { return len(d.Actions) }

// SARES holds the residual dynamics unexplained by the current stack,
// the training target for the next candidate extractor.
type SARES struct {
	States  []types.State
	Actions []int
	Res     *mat.Dense
}

func (d *SARES) Len() int { return len(d.Actions) }

// FADF holds the combined stacked+candidate features with the dynamics
// delta carried over from the corresponding SFADF rows.
type FADF struct {
	F       *mat.Dense
	Actions []int
	D       *mat.Dense
	FNext   *mat.Dense
}

func (d *FADF) Len() int { return len(d.Actions) }

// BuildFARF re-expresses each transition through a single extractor:
// F = encode(S), A = A, R = R, F' = encode(S').
func BuildFARF(e types.Extractor, sars *SARS) (*FARF, error) {
	if sars.Len() == 0 {
		return &FARF{Actions: []int{}, Rewards: []float64{}}, nil
	}
	x, err := sars.StateMatrix()
	if err != nil {
		return nil, err
	}
	xn, err := sars.NextStateMatrix()
	if err != nil {
		return nil, err
	}
	f, err := e.Encode(x)
	if err != nil {
		return nil, err
	}
	fn, err := e.Encode(xn)
	if err != nil {
		return nil, err
	}
	return &FARF{F: f, Actions: sars.Actions(), Rewards: sars.Rewards(), FNext: fn}, nil
}

// BuildGlobalFARF is BuildFARF over the entire current stack's composed
// features, used once a stack is finalized.
func BuildGlobalFARF(st *stack.Stack, sars *SARS) (*FARF, error) {
	if sars.Len() == 0 {
		return &FARF{Actions: []int{}, Rewards: []float64{}}, nil
	}
	x, err := sars.StateMatrix()
	if err != nil {
		return nil, err
	}
	xn, err := sars.NextStateMatrix()
	if err != nil {
		return nil, err
	}
	f, err := st.Features(x)
	if err != nil {
		return nil, err
	}
	fn, err := st.Features(xn)
	if err != nil {
		return nil, err
	}
	return &FARF{F: f, Actions: sars.Actions(), Rewards: sars.Rewards(), FNext: fn}, nil
}

// BuildSFADF derives the dynamics-target dataset:
// S = S, F = stack(S), A = A,
// D = mask(encode(S)) - mask(encode(S')), F' = stack(S').
// D is restricted to the given support mask of the candidate extractor.
func BuildSFADF(st *stack.Stack, e types.Extractor, support []bool, sars *SARS) (*SFADF, error) {
	if len(support) != e.OutputDim() {
		return nil, &types.ShapeMismatchError{
			Context: "candidate support mask",
			Want:    e.OutputDim(),
			Got:     len(support),
		}
	}
	if sars.Len() == 0 {
		return &SFADF{States: []types.State{}, Actions: []int{}}, nil
	}
	x, err := sars.StateMatrix()
	if err != nil {
		return nil, err
	}
	xn, err := sars.NextStateMatrix()
	if err != nil {
		return nil, err
	}
	f, err := st.Features(x)
	if err != nil {
		return nil, err
	}
	fn, err := st.Features(xn)
	if err != nil {
		return nil, err
	}
	enc, err := e.Encode(x)
	if err != nil {
		return nil, err
	}
	encNext, err := e.Encode(xn)
	if err != nil {
		return nil, err
	}

	var d *mat.Dense
	masked := stack.MaskColumns(enc, support)
	maskedNext := stack.MaskColumns(encNext, support)
	if masked != nil {
		d = &mat.Dense{}
		d.Sub(masked, maskedNext)
	}

	states := make([]types.State, sars.Len())
	for i := 0; i < sars.Len(); i++ {
		s, _, _, _, _ := sars.Get(i)
		states[i] = s
	}
	return &SFADF{States: states, F: f, Actions: sars.Actions(), D: d, FNext: fn}, nil
}

// BuildSARES computes the residual target:
// S = S, A = A, RES = D - predict(F).
// The subtraction is literal and element-wise; no clipping or
// normalization is applied here.
func BuildSARES(model types.ResidualModel, sfadf *SFADF) (*SARES, error) {
	if sfadf.Len() == 0 {
		return &SARES{States: []types.State{}, Actions: []int{}}, nil
	}
	if sfadf.F == nil {
		return nil, errors.New("cannot score residuals against an empty feature matrix")
	}
	if sfadf.D == nil {
		return nil, errors.New("cannot score residuals without a dynamics target")
	}
	pred, err := model.Predict(sfadf.F)
	if err != nil {
		return nil, err
	}
	dr, dc := sfadf.D.Dims()
	pr, pc := pred.Dims()
	if pr != dr || pc != dc {
		return nil, &types.ShapeMismatchError{
			Context: fmt.Sprintf("residual prediction (%dx%d) against dynamics (%dx%d)", pr, pc, dr, dc),
			Want:    dc,
			Got:     pc,
		}
	}
	res := &mat.Dense{}
	res.Sub(sfadf.D, pred)

	states := make([]types.State, len(sfadf.States))
	copy(states, sfadf.States)
	actions := make([]int, len(sfadf.Actions))
	copy(actions, sfadf.Actions)
	return &SARES{States: states, Actions: actions, Res: res}, nil
}

// BuildFADF re-evaluates dynamics once the candidate is tentatively
// added: F = stack(S) ++ encode(S), A = A, F' = stack(S') ++ encode(S'),
// D copied row-for-row from the corresponding SFADF rows.
func BuildFADF(st *stack.Stack, e types.Extractor, sars *SARS, sfadf *SFADF) (*FADF, error) {
	if sars.Len() != sfadf.Len() {
		return nil, fmt.Errorf("transition dataset has %d rows but SFADF has %d", sars.Len(), sfadf.Len())
	}
	if sars.Len() == 0 {
		return &FADF{Actions: []int{}}, nil
	}
	x, err := sars.StateMatrix()
	if err != nil {
		return nil, err
	}
	xn, err := sars.NextStateMatrix()
	if err != nil {
		return nil, err
	}
	stackF, err := st.Features(x)
	if err != nil {
		return nil, err
	}
	stackFN, err := st.Features(xn)
	if err != nil {
		return nil, err
	}
	enc, err := e.Encode(x)
	if err != nil {
		return nil, err
	}
	encNext, err := e.Encode(xn)
	if err != nil {
		return nil, err
	}

	var d *mat.Dense
	if sfadf.D != nil {
		d = mat.DenseCopyOf(sfadf.D)
	}
	return &FADF{
		F:       stack.HStack(stackF, enc),
		Actions: sars.Actions(),
		D:       d,
		FNext:   stack.HStack(stackFN, encNext),
	}, nil
}
