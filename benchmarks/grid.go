package benchmarks

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielegr/deep-ifs/grid"
	"github.com/danielegr/deep-ifs/ifs"
	"github.com/danielegr/deep-ifs/types"
)

// GridIFS grows a feature stack on the multi-room grid environment
func GridIFS(ctx context.Context, height, width, grids, features int, epsilon, threshold float64) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	doors := []grid.Door{
		{From: grid.Position{I: height - 1, J: width - 1, K: 0}, To: grid.Position{I: 0, J: 0, K: 1}},
		{From: grid.Position{I: height - 1, J: 0, K: 1}, To: grid.Position{I: 0, J: 0, K: 2}},
	}
	factory := types.EnvironmentFactory(func() (types.Environment, error) {
		return grid.NewEnvironment(height, width, grids, doors...), nil
	})
	env, _ := factory()

	loop := ifs.NewLoop(ifs.Config{
		Iterations:       iterations,
		Episodes:         episodes,
		Parallelism:      parallelism,
		Horizon:          horizon,
		EpisodeTimeout:   30 * time.Second,
		Epsilon:          epsilon,
		EncoderOutputDim: features,
		SupportThreshold: threshold,
		CheckpointDir:    path.Join(saveDir, "checkpoints"),
		DatasetDir:       path.Join(saveDir, "datasets"),
		Seed:             seed,
		Progress:         true,
		Logger:           logger,
	}, factory, env.Actions())

	if err := loop.Run(ctx); err != nil {
		return err
	}

	plotDir := path.Join(saveDir, "plots")
	if err := ifs.PlotSupportGrowth(loop.Metrics(), plotDir); err != nil {
		return err
	}
	if err := ifs.PlotResidualNorm(loop.Metrics(), plotDir); err != nil {
		return err
	}

	farf := loop.FinalFARF()
	fmt.Printf("final stack: %d stages, %d selected features, %d reward-target rows\n",
		loop.Stack().Len(), loop.Stack().SupportDim(), farf.Len())
	return nil
}

func GridCommand() *cobra.Command {
	var height int
	var width int
	var grids int
	var features int
	var epsilon float64
	var threshold float64

	cmd := &cobra.Command{
		Use: "grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return GridIFS(cmd.Context(), height, width, grids, features, epsilon, threshold)
		},
	}
	cmd.PersistentFlags().IntVar(&height, "height", 10, "Height of each grid")
	cmd.PersistentFlags().IntVar(&width, "width", 10, "Width of each grid")
	cmd.PersistentFlags().IntVar(&grids, "grids", 3, "Number of grids")
	cmd.PersistentFlags().IntVar(&features, "features", 16, "Raw output features per candidate encoder")
	cmd.PersistentFlags().Float64Var(&epsilon, "epsilon", 0.2, "Exploration rate of the collection policy")
	cmd.PersistentFlags().Float64Var(&threshold, "threshold", 1e-4, "Variance threshold for support selection")
	return cmd
}
