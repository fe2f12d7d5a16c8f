package types

// Policy selects an action index given a raw state
type Policy interface {
	Act(state State) (int, error)
	// Snapshot returns a read-only copy to hand to a rollout worker.
	// The copy must not observe mutations made to the receiver after
	// the snapshot is taken.
	Snapshot() Policy
}
