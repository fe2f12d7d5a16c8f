package policies

import (
	"errors"

	"golang.org/x/exp/rand"

	"github.com/danielegr/deep-ifs/types"
)

// RandomPolicy picks uniformly among the environment's discrete
// actions. Used to collect the very first transition dataset, before
// any stage exists.
type RandomPolicy struct {
	actions int
	rng     *rand.Rand
}

var _ types.Policy = &RandomPolicy{}

func NewRandomPolicy(actions int, seed uint64) *RandomPolicy {
	return &RandomPolicy{
		actions: actions,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (p *RandomPolicy) Act(_ types.State) (int, error) {
	if p.actions <= 0 {
		return 0, errors.New("random policy has no actions to pick from")
	}
	return p.rng.Intn(p.actions), nil
}

func (p *RandomPolicy) Snapshot() types.Policy {
	return &RandomPolicy{
		actions: p.actions,
		rng:     rand.New(rand.NewSource(p.rng.Uint64())),
	}
}
