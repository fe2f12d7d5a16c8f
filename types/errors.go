package types

import "fmt"

// ShapeMismatchError signals a support mask whose length disagrees with
// its extractor's output dimension, or a state whose length disagrees
// with an extractor's expected input. Never retried.
type ShapeMismatchError struct {
	Context string
	Want    int
	Got     int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch in %s: want %d, got %d", e.Context, e.Want, e.Got)
}

// StackLoadError signals missing, unpaired or empty stage files when
// loading a persisted stack.
type StackLoadError struct {
	Dir      string
	Reason   string
	Encoders int
	Supports int
}

func (e *StackLoadError) Error() string {
	return fmt.Sprintf("cannot load stack from %s: %s (%d encoder files, %d support files)",
		e.Dir, e.Reason, e.Encoders, e.Supports)
}

// EpisodeError carries the failure of a single rollout. The whole
// collection round fails with the first one observed.
type EpisodeError struct {
	Episode int
	Step    int
	Err     error
}

func (e *EpisodeError) Error() string {
	return fmt.Sprintf("episode %d failed at step %d: %v", e.Episode, e.Step, e.Err)
}

func (e *EpisodeError) Unwrap() error {
	return e.Err
}
