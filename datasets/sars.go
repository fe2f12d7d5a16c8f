package datasets

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/types"
)

// SARS is a columnar transition dataset: row i holds one environment
// step (state, action, reward, next state). Rows are never reordered,
// filtered or deduplicated once appended.
type SARS struct {
	states     []types.State
	actions    []int
	rewards    []float64
	nextStates []types.State
}

func NewSARS() *SARS {
	return &SARS{
		states:     make([]types.State, 0),
		actions:    make([]int, 0),
		rewards:    make([]float64, 0),
		nextStates: make([]types.State, 0),
	}
}

func (d *SARS) Append(state types.State, action int, reward float64, nextState types.State) {
	d.states = append(d.states, state)
	d.actions = append(d.actions, action)
	d.rewards = append(d.rewards, reward)
	d.nextStates = append(d.nextStates, nextState)
}

func (d *SARS) Len() int {
	return len(d.states)
}

func (d *SARS) Get(i int) (types.State, int, float64, types.State, bool) {
	if i < 0 || i >= len(d.states) {
		return nil, 0, 0, nil, false
	}
	return d.states[i], d.actions[i], d.rewards[i], d.nextStates[i], true
}

// Extend appends every row of other, in order
func (d *SARS) Extend(other *SARS) {
	d.states = append(d.states, other.states...)
	d.actions = append(d.actions, other.actions...)
	d.rewards = append(d.rewards, other.rewards...)
	d.nextStates = append(d.nextStates, other.nextStates...)
}

func (d *SARS) Slice(from, to int) *SARS {
	s := NewSARS()
	for i := from; i < to; i++ {
		s.Append(d.states[i], d.actions[i], d.rewards[i], d.nextStates[i])
	}
	return s
}

// Actions returns a copy of the action column
func (d *SARS) Actions() []int {
	out := make([]int, len(d.actions))
	copy(out, d.actions)
	return out
}

// Rewards returns a copy of the reward column
func (d *SARS) Rewards() []float64 {
	out := make([]float64, len(d.rewards))
	copy(out, d.rewards)
	return out
}

// RewardMatrix returns the reward column as an n x 1 matrix
func (d *SARS) RewardMatrix() *mat.Dense {
	if len(d.rewards) == 0 {
		return nil
	}
	return mat.NewDense(len(d.rewards), 1, d.Rewards())
}

// StateMatrix stacks the state column into a matrix, one row per
// sample. All states must share the same length.
func (d *SARS) StateMatrix() (*mat.Dense, error) {
	return stackStates(d.states, "state")
}

// NextStateMatrix stacks the next-state column into a matrix
func (d *SARS) NextStateMatrix() (*mat.Dense, error) {
	return stackStates(d.nextStates, "next state")
}

func stackStates(states []types.State, what string) (*mat.Dense, error) {
	if len(states) == 0 {
		return nil, nil
	}
	width := len(states[0])
	if width == 0 {
		return nil, fmt.Errorf("%s row 0 is empty", what)
	}
	out := mat.NewDense(len(states), width, nil)
	for i, s := range states {
		if len(s) != width {
			return nil, &types.ShapeMismatchError{
				Context: fmt.Sprintf("%s row %d", what, i),
				Want:    width,
				Got:     len(s),
			}
		}
		out.SetRow(i, s)
	}
	return out, nil
}

// sarsRow is the JSONL serialization of one transition
type sarsRow struct {
	S  types.State `json:"s"`
	A  int         `json:"a"`
	R  float64     `json:"r"`
	SS types.State `json:"ss"`
}

// Save writes the dataset to a JSONL file, one transition per line,
// in row order.
func (d *SARS) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dataset file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range d.states {
		row := sarsRow{S: d.states[i], A: d.actions[i], R: d.rewards[i], SS: d.nextStates[i]}
		if err := enc.Encode(&row); err != nil {
			return fmt.Errorf("writing dataset row %d: %w", i, err)
		}
	}
	return w.Flush()
}

// LoadSARS reads a dataset written by Save, preserving row order
func LoadSARS(path string) (*SARS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset file %s: %w", path, err)
	}
	defer f.Close()

	d := NewSARS()
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var row sarsRow
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("reading dataset row %d: %w", d.Len(), err)
		}
		d.Append(row.S, row.A, row.R, row.SS)
	}
	return d, nil
}
