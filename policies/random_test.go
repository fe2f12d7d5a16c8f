package policies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielegr/deep-ifs/types"
)

func TestRandomPolicyRange(t *testing.T) {
	p := NewRandomPolicy(3, 1)
	counts := map[int]int{}
	for i := 0; i < 300; i++ {
		a, err := p.Act(types.State{0})
		require.NoError(t, err)
		require.GreaterOrEqual(t, a, 0)
		require.Less(t, a, 3)
		counts[a]++
	}
	assert.Len(t, counts, 3)
}

func TestRandomPolicyNoActions(t *testing.T) {
	p := NewRandomPolicy(0, 1)
	_, err := p.Act(types.State{0})
	assert.Error(t, err)
}

func TestRandomPolicySnapshot(t *testing.T) {
	p := NewRandomPolicy(5, 9)
	snap := p.Snapshot()
	require.NotNil(t, snap)

	for i := 0; i < 10; i++ {
		a, err := snap.Act(types.State{0})
		require.NoError(t, err)
		assert.Less(t, a, 5)
	}
}
