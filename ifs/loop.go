package ifs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/danielegr/deep-ifs/datasets"
	"github.com/danielegr/deep-ifs/extraction"
	"github.com/danielegr/deep-ifs/policies"
	"github.com/danielegr/deep-ifs/roller"
	"github.com/danielegr/deep-ifs/stack"
	"github.com/danielegr/deep-ifs/types"
	"github.com/danielegr/deep-ifs/util"
)

// Config of the iterative feature selection loop
type Config struct {
	// Iterations is the number of stages to grow
	Iterations int
	// Episodes collected per iteration
	Episodes int
	// Parallelism of the collection rounds
	Parallelism int
	// Horizon caps episode length
	Horizon int
	// EpisodeTimeout bounds a single rollout
	EpisodeTimeout time.Duration
	// Epsilon of the exploration policy once a stack exists
	Epsilon float64
	// EncoderOutputDim is the raw feature count of each candidate
	EncoderOutputDim int
	// SupportThreshold is the variance cutoff for support selection
	SupportThreshold float64
	// CheckpointDir receives the stack checkpoint at the end of every
	// iteration (and on error). Empty disables checkpointing.
	CheckpointDir string
	// DatasetDir receives the collected transition datasets as JSONL.
	// Empty disables dataset persistence.
	DatasetDir string
	// Seed feeds every random source in the loop
	Seed uint64
	// Progress enables the live collection status line
	Progress bool

	Logger *zap.Logger
}

// IterationMetrics summarizes one IFS iteration
type IterationMetrics struct {
	Iteration    int
	DatasetRows  int
	StageSupport int
	SupportDim   int
	// ResidualNorm is the per-row norm of the dynamics left
	// unexplained by the stack before this iteration's stage
	ResidualNorm float64
	// CombinedNorm is the same quantity re-evaluated with the
	// candidate's raw features added
	CombinedNorm float64
}

// Loop runs the IFS procedure: each iteration collects transitions
// under the current stack's policy, trains a candidate extractor on the
// residual target, masks it to its useful outputs and appends it as a
// new stage.
type Loop struct {
	cfg     Config
	factory types.EnvironmentFactory
	actions int

	stack     *stack.Stack
	residual  *extraction.LinearResidual
	metrics   []IterationMetrics
	finalFARF *datasets.FARF
	logger    *zap.Logger
}

func NewLoop(cfg Config, factory types.EnvironmentFactory, actions int) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cfg:      cfg,
		factory:  factory,
		actions:  actions,
		stack:    stack.New(),
		residual: extraction.NewLinearResidual(),
		metrics:  make([]IterationMetrics, 0),
		logger:   logger,
	}
}

// Stack returns the feature stack grown so far
func (l *Loop) Stack() *stack.Stack {
	return l.stack
}

// Metrics returns the per-iteration metrics recorded so far
func (l *Loop) Metrics() []IterationMetrics {
	return l.metrics
}

// FinalFARF is the reward-target dataset over the finalized stack's
// composed features, ready for a downstream value-function learner.
// Nil until Run completes.
func (l *Loop) FinalFARF() *datasets.FARF {
	return l.finalFARF
}

// Run executes the configured number of iterations. The stack is
// mutated only here, between collection rounds; a round boundary is the
// synchronization barrier.
func (l *Loop) Run(ctx context.Context) error {
	if l.cfg.Iterations <= 0 {
		return fmt.Errorf("loop needs at least one iteration, got %d", l.cfg.Iterations)
	}
	if l.cfg.DatasetDir != "" {
		if err := os.MkdirAll(l.cfg.DatasetDir, 0755); err != nil {
			return fmt.Errorf("creating dataset directory: %w", err)
		}
	}

	var lastSARS *datasets.SARS

	for it := 0; it < l.cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return l.failed(it, err)
		}
		l.logger.Info("starting iteration", zap.Int("iteration", it), zap.Int("stages", l.stack.Len()))

		sars, err := roller.Collect(ctx, l.factory, l.policy(it), roller.Config{
			Episodes:       l.cfg.Episodes,
			Parallelism:    l.cfg.Parallelism,
			Horizon:        l.cfg.Horizon,
			EpisodeTimeout: l.cfg.EpisodeTimeout,
			Progress:       l.cfg.Progress,
			Logger:         l.logger,
		})
		if err != nil {
			return l.failed(it, err)
		}
		if sars.Len() == 0 {
			return l.failed(it, fmt.Errorf("collection produced an empty dataset"))
		}
		lastSARS = sars

		if l.cfg.DatasetDir != "" {
			file := path.Join(l.cfg.DatasetDir, fmt.Sprintf("sars_%d.jsonl", it))
			if err := sars.Save(file); err != nil {
				return l.failed(it, err)
			}
		}

		if err := l.growStage(it, sars); err != nil {
			return l.failed(it, err)
		}

		if l.cfg.CheckpointDir != "" {
			dir := path.Join(l.cfg.CheckpointDir, fmt.Sprintf("iter_%d", it))
			if err := l.stack.Save(dir); err != nil {
				return l.failed(it, err)
			}
			l.logger.Info("stack checkpoint written", zap.String("dir", dir))
		}
	}

	farf, err := datasets.BuildGlobalFARF(l.stack, lastSARS)
	if err != nil {
		return fmt.Errorf("building final reward dataset: %w", err)
	}
	l.finalFARF = farf
	l.logger.Info("loop complete",
		zap.Int("stages", l.stack.Len()),
		zap.Int("support_dim", l.stack.SupportDim()),
		zap.Int("final_farf_rows", farf.Len()),
	)
	return nil
}

// growStage trains a candidate on the iteration's target, selects its
// support and appends it to the stack.
func (l *Loop) growStage(it int, sars *datasets.SARS) error {
	x, err := sars.StateMatrix()
	if err != nil {
		return err
	}
	_, stateDim := x.Dims()

	metrics := IterationMetrics{Iteration: it, DatasetRows: sars.Len()}

	// iteration 0 explains the reward; later iterations explain the
	// residual dynamics the current stack leaves behind
	var target *mat.Dense
	var sfadf *datasets.SFADF
	if l.stack.Len() == 0 {
		target = sars.RewardMatrix()
	} else {
		last, err := l.stack.Stage(l.stack.Len() - 1)
		if err != nil {
			return err
		}
		sfadf, err = datasets.BuildSFADF(l.stack, last.Extractor, last.Support, sars)
		if err != nil {
			return err
		}
		if err := l.residual.Fit(sfadf.F, sfadf.D); err != nil {
			return err
		}
		sares, err := datasets.BuildSARES(l.residual, sfadf)
		if err != nil {
			return err
		}
		target = sares.Res
		rows, _ := sares.Res.Dims()
		metrics.ResidualNorm = mat.Norm(sares.Res, 2) / float64(rows)
	}

	candidate, err := l.trainCandidate(it, stateDim, x, target)
	if err != nil {
		return err
	}
	support, err := l.selectSupport(candidate, x)
	if err != nil {
		return err
	}

	if sfadf != nil {
		// re-evaluate the dynamics fit with the candidate tentatively
		// added; a refit here tells us how much the combined features
		// explain before the stage is committed
		fadf, err := datasets.BuildFADF(l.stack, candidate, sars, sfadf)
		if err != nil {
			return err
		}
		combined := extraction.NewLinearResidual()
		if err := combined.Fit(fadf.F, fadf.D); err != nil {
			return err
		}
		pred, err := combined.Predict(fadf.F)
		if err != nil {
			return err
		}
		var left mat.Dense
		left.Sub(fadf.D, pred)
		metrics.CombinedNorm = mat.Norm(&left, 2) / float64(fadf.Len())
	}

	return l.accept(candidate, support, metrics)
}

func (l *Loop) trainCandidate(it, stateDim int, x, target *mat.Dense) (*extraction.LinearEncoder, error) {
	candidate := extraction.NewLinearEncoder(stateDim, l.cfg.EncoderOutputDim, l.cfg.Seed+uint64(it)+1)
	if err := candidate.Train(x, target); err != nil {
		return nil, fmt.Errorf("training candidate extractor: %w", err)
	}
	return candidate, nil
}

func (l *Loop) selectSupport(candidate *extraction.LinearEncoder, x *mat.Dense) ([]bool, error) {
	encoded, err := candidate.Encode(x)
	if err != nil {
		return nil, err
	}
	return extraction.SelectSupport(encoded, l.cfg.SupportThreshold), nil
}

func (l *Loop) accept(candidate *extraction.LinearEncoder, support []bool, metrics IterationMetrics) error {
	if err := l.stack.Add(candidate, support); err != nil {
		return err
	}
	top, err := l.stack.StageSupportDim(l.stack.Len() - 1)
	if err != nil {
		return err
	}
	metrics.StageSupport = top
	metrics.SupportDim = l.stack.SupportDim()
	l.metrics = append(l.metrics, metrics)
	if l.cfg.CheckpointDir != "" {
		if err := l.recordMetrics(metrics); err != nil {
			return err
		}
	}
	l.logger.Info("stage accepted",
		zap.Int("iteration", metrics.Iteration),
		zap.Int("stage_support", metrics.StageSupport),
		zap.Int("support_dim", metrics.SupportDim),
		zap.Float64("residual_norm", metrics.ResidualNorm),
	)
	return nil
}

// recordMetrics appends the iteration metrics as one JSON line
func (l *Loop) recordMetrics(metrics IterationMetrics) error {
	if err := os.MkdirAll(l.cfg.CheckpointDir, 0755); err != nil {
		return err
	}
	bs, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	return util.AppendToFile(path.Join(l.cfg.CheckpointDir, "metrics.jsonl"), string(bs))
}

// policy returns the collection policy for the iteration: uniform
// random before any stage exists, epsilon-greedy over composed features
// afterwards.
func (l *Loop) policy(it int) types.Policy {
	if l.stack.SupportDim() == 0 {
		return policies.NewRandomPolicy(l.actions, l.cfg.Seed+uint64(it))
	}
	estimator := policies.NewLinearValue(l.stack.SupportDim(), l.actions, l.cfg.Seed+uint64(it))
	return policies.NewEpsilonGreedyPolicy(l.stack, estimator, l.cfg.Epsilon, l.cfg.Seed+uint64(it))
}

// failed checkpoints whatever stack exists before surfacing the error
func (l *Loop) failed(it int, err error) error {
	if l.cfg.CheckpointDir != "" && l.stack.Len() > 0 {
		dir := path.Join(l.cfg.CheckpointDir, "on_error")
		if saveErr := l.stack.Save(dir); saveErr != nil {
			l.logger.Error("error checkpoint failed", zap.Error(saveErr))
		} else {
			l.logger.Info("error checkpoint written", zap.String("dir", dir))
		}
	}
	return fmt.Errorf("iteration %d: %w", it, err)
}
