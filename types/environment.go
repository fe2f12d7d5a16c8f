package types

// State is a single raw observation, flattened to one row of values.
// Extractors declare the input dimension they expect; a state of any
// other length is a structural error.
type State []float64

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// StepResult is the outcome of one environment step.
type StepResult struct {
	State  State
	Reward float64
	Done   bool
	Info   map[string]interface{}
}

// Environment that the policies interact with
type Environment interface {
	// Reset called at the start of each episode
	Reset() (State, error)
	// Step executes a discrete action
	Step(action int) (StepResult, error)
	// Actions returns the size of the discrete action set
	Actions() int
	// Render the current state (side effects only)
	Render(mode string)
}

// EnvironmentFactory creates a fresh environment instance.
// Each rollout worker owns its own instance.
type EnvironmentFactory func() (Environment, error)
