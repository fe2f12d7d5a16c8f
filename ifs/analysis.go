package ifs

import (
	"fmt"
	"os"
	"path"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotSupportGrowth draws the cumulative selected-feature count per
// iteration.
func PlotSupportGrowth(metrics []IterationMetrics, plotPath string) error {
	points := make(plotter.XYs, len(metrics))
	for i, m := range metrics {
		points[i] = plotter.XY{X: float64(m.Iteration), Y: float64(m.SupportDim)}
	}
	return savePlot("Support growth", "Iteration", "Selected features", points, plotPath, "support_growth.png")
}

// PlotResidualNorm draws the per-row residual norm per iteration
func PlotResidualNorm(metrics []IterationMetrics, plotPath string) error {
	points := make(plotter.XYs, 0, len(metrics))
	for _, m := range metrics {
		if m.Iteration == 0 {
			// no residual is defined before the first stage exists
			continue
		}
		points = append(points, plotter.XY{X: float64(m.Iteration), Y: m.ResidualNorm})
	}
	return savePlot("Residual dynamics", "Iteration", "Residual norm per row", points, plotPath, "residual_norm.png")
}

func savePlot(title, xLabel, yLabel string, points plotter.XYs, plotPath, name string) error {
	if _, err := os.Stat(plotPath); err != nil {
		if err := os.MkdirAll(plotPath, os.ModePerm); err != nil {
			return err
		}
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("building %s plot: %w", name, err)
	}
	line.Color = plotutil.Color(0)
	p.Add(line)
	return p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, name))
}
