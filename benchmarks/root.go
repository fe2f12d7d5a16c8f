package benchmarks

import "github.com/spf13/cobra"

var (
	iterations  int
	episodes    int
	horizon     int
	parallelism int
	saveDir     string
	seed        uint64
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "deep-ifs",
		Short: "Iterative feature selection pipelines",
	}
	rootCommand.PersistentFlags().IntVarP(&iterations, "iterations", "i", 3, "Number of IFS iterations (stages to grow)")
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 100, "Number of episodes collected per iteration")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 200, "Horizon of each episode")
	rootCommand.PersistentFlags().IntVarP(&parallelism, "parallelism", "p", 0, "Parallel rollout workers (0 = one per CPU)")
	rootCommand.PersistentFlags().StringVarP(&saveDir, "save", "s", "results", "Directory for checkpoints, datasets and plots")
	rootCommand.PersistentFlags().Uint64Var(&seed, "seed", 1, "Random seed")
	rootCommand.AddCommand(GridCommand())
	return rootCommand
}
