package roller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danielegr/deep-ifs/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedEnv runs for a fixed number of steps, emitting states that
// identify the episode and the step
type scriptedEnv struct {
	id      int
	length  int
	step    int
	failAt  int // -1 disables failures
	stepLag time.Duration
}

var _ types.Environment = &scriptedEnv{}

func (e *scriptedEnv) Reset() (types.State, error) {
	e.step = 0
	return types.State{float64(e.id), 0}, nil
}

func (e *scriptedEnv) Step(action int) (types.StepResult, error) {
	if e.stepLag > 0 {
		time.Sleep(e.stepLag)
	}
	if e.failAt >= 0 && e.step == e.failAt {
		return types.StepResult{}, fmt.Errorf("scripted failure at step %d", e.step)
	}
	e.step++
	return types.StepResult{
		State:  types.State{float64(e.id), float64(e.step)},
		Reward: 1.0,
		Done:   e.step >= e.length,
	}, nil
}

func (e *scriptedEnv) Actions() int       { return 2 }
func (e *scriptedEnv) Render(mode string) {}

// scriptedFactory hands out environments with per-episode lengths, in
// creation order
func scriptedFactory(lengths []int, failAt int, lag time.Duration) types.EnvironmentFactory {
	var created atomic.Int64
	return func() (types.Environment, error) {
		id := int(created.Add(1)) - 1
		length := 1
		if id < len(lengths) {
			length = lengths[id]
		}
		return &scriptedEnv{id: id, length: length, failAt: failAt, stepLag: lag}, nil
	}
}

// fixedPolicy always picks the same action
type fixedPolicy struct {
	action int
}

func (p *fixedPolicy) Act(_ types.State) (int, error) { return p.action, nil }
func (p *fixedPolicy) Snapshot() types.Policy         { return &fixedPolicy{action: p.action} }

func TestCollectConcatenatesEpisodes(t *testing.T) {
	factory := scriptedFactory([]int{5, 2, 7}, -1, 0)
	d, err := Collect(context.Background(), factory, &fixedPolicy{}, Config{
		Episodes:    3,
		Parallelism: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 14, d.Len())

	// the first five rows are the first episode, in step order
	for i := 0; i < 5; i++ {
		s, _, _, ss, ok := d.Get(i)
		require.True(t, ok)
		assert.Equal(t, types.State{0, float64(i)}, s)
		assert.Equal(t, types.State{0, float64(i + 1)}, ss)
	}
}

func TestCollectParallel(t *testing.T) {
	factory := scriptedFactory([]int{3, 3, 3, 3, 3, 3, 3, 3}, -1, 0)
	d, err := Collect(context.Background(), factory, &fixedPolicy{}, Config{
		Episodes:    8,
		Parallelism: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 24, d.Len())
}

func TestCollectFailureReturnsNoPartialDataset(t *testing.T) {
	factory := scriptedFactory([]int{5, 5, 5}, 2, 0)
	d, err := Collect(context.Background(), factory, &fixedPolicy{}, Config{
		Episodes:    3,
		Parallelism: 2,
	})
	require.Error(t, err)
	assert.Nil(t, d)

	var epErr *types.EpisodeError
	require.True(t, errors.As(err, &epErr))
	assert.Equal(t, 2, epErr.Step)
}

func TestCollectHorizonCapsEpisodes(t *testing.T) {
	factory := scriptedFactory([]int{100}, -1, 0)
	d, err := Collect(context.Background(), factory, &fixedPolicy{}, Config{
		Episodes:    1,
		Parallelism: 1,
		Horizon:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, d.Len())
}

func TestCollectCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	factory := scriptedFactory([]int{1000}, -1, time.Millisecond)
	_, err := Collect(ctx, factory, &fixedPolicy{}, Config{
		Episodes:    1,
		Parallelism: 1,
	})
	var epErr *types.EpisodeError
	require.True(t, errors.As(err, &epErr))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectEpisodeTimeout(t *testing.T) {
	factory := scriptedFactory([]int{100000}, -1, 5*time.Millisecond)
	_, err := Collect(context.Background(), factory, &fixedPolicy{}, Config{
		Episodes:       1,
		Parallelism:    1,
		EpisodeTimeout: 30 * time.Millisecond,
	})
	var epErr *types.EpisodeError
	require.True(t, errors.As(err, &epErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCollectZeroEpisodes(t *testing.T) {
	d, err := Collect(context.Background(), scriptedFactory(nil, -1, 0), &fixedPolicy{}, Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
}

func TestCollectFactoryError(t *testing.T) {
	factory := types.EnvironmentFactory(func() (types.Environment, error) {
		return nil, errors.New("no emulator available")
	})
	_, err := Collect(context.Background(), factory, &fixedPolicy{}, Config{Episodes: 1})
	var epErr *types.EpisodeError
	require.True(t, errors.As(err, &epErr))
}
