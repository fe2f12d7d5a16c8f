package roller

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielegr/deep-ifs/datasets"
	"github.com/danielegr/deep-ifs/types"
)

// Config for a collection round
type Config struct {
	// Episodes is the number of independent rollouts to run
	Episodes int
	// Parallelism bounds the number of concurrent rollouts.
	// Zero or negative means one worker per CPU.
	Parallelism int
	// Horizon caps the number of steps per episode. Zero means no cap.
	Horizon int
	// EpisodeTimeout bounds the wall time of a single rollout.
	// Zero means no timeout.
	EpisodeTimeout time.Duration
	// Render calls Environment.Render after every step
	Render bool
	// Progress enables the live terminal status line
	Progress bool

	Logger *zap.Logger
}

// Collect runs cfg.Episodes independent rollouts of the policy against
// fresh environments and returns the concatenated transition dataset.
// Each worker owns its own environment instance and a read-only
// snapshot of the policy taken when its episode starts. Intra-episode
// row order reflects real step order; episodes concatenate in episode
// index order. If any rollout fails, the whole round fails and no
// partial dataset is returned.
func Collect(ctx context.Context, factory types.EnvironmentFactory, policy types.Policy, cfg Config) (*datasets.SARS, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	out := datasets.NewSARS()
	if cfg.Episodes <= 0 {
		return out, nil
	}

	logger.Info("starting collection round",
		zap.Int("episodes", cfg.Episodes),
		zap.Int("parallelism", parallelism),
		zap.Int("horizon", cfg.Horizon),
	)
	start := time.Now()

	var done atomic.Int64
	var printer *progressPrinter
	if cfg.Progress {
		printer = newProgressPrinter(int64(cfg.Episodes), &done)
		printer.Start()
		defer printer.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	episodes := make([]*datasets.SARS, cfg.Episodes)
	for i := 0; i < cfg.Episodes; i++ {
		i := i
		// snapshots are taken on the coordinating goroutine, never
		// concurrently with each other
		snapshot := policy.Snapshot()
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &types.EpisodeError{Episode: i, Err: fmt.Errorf("rollout panicked: %v", r)}
				}
			}()
			ep, err := runEpisode(gctx, factory, snapshot, i, cfg)
			if err != nil {
				return err
			}
			episodes[i] = ep
			done.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("collection round failed", zap.Error(err))
		return nil, err
	}

	for _, ep := range episodes {
		out.Extend(ep)
	}
	logger.Info("collection round complete",
		zap.Int("rows", out.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// runEpisode drives one rollout until done or the horizon. The context
// is observed between steps so a cancelled or timed-out round stops
// promptly, surfaced as a typed episode failure.
func runEpisode(ctx context.Context, factory types.EnvironmentFactory, policy types.Policy, episode int, cfg Config) (*datasets.SARS, error) {
	if cfg.EpisodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.EpisodeTimeout)
		defer cancel()
	}

	env, err := factory()
	if err != nil {
		return nil, &types.EpisodeError{Episode: episode, Err: err}
	}
	state, err := env.Reset()
	if err != nil {
		return nil, &types.EpisodeError{Episode: episode, Err: err}
	}

	d := datasets.NewSARS()
	for step := 0; cfg.Horizon <= 0 || step < cfg.Horizon; step++ {
		select {
		case <-ctx.Done():
			return nil, &types.EpisodeError{Episode: episode, Step: step, Err: ctx.Err()}
		default:
		}

		action, err := policy.Act(state)
		if err != nil {
			return nil, &types.EpisodeError{Episode: episode, Step: step, Err: err}
		}
		res, err := env.Step(action)
		if err != nil {
			return nil, &types.EpisodeError{Episode: episode, Step: step, Err: err}
		}
		d.Append(state, action, res.Reward, res.State)

		if cfg.Render {
			env.Render("human")
		}
		if res.Done {
			break
		}
		state = res.State
	}
	return d, nil
}
