package visualization

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SaveTracePlot renders an iteration trace as a line plot. startIndex is
// the iteration index of the first value, so traces with the first point
// discarded still plot against their true iteration numbers. Non-finite
// entries are skipped so a single degenerate iteration does not blank the
// whole plot.
func SaveTracePlot(values []float64, startIndex int, title, yLabel, path string) error {
	if len(values) == 0 {
		return fmt.Errorf("visualization: empty trace for %q", title)
	}

	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(startIndex + i), Y: v})
	}
	if len(pts) == 0 {
		return fmt.Errorf("visualization: trace for %q has no finite values", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = yLabel

	if err := plotutil.AddLinePoints(p, yLabel, pts); err != nil {
		return fmt.Errorf("visualization: failed to add trace line: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("visualization: failed to create output directory: %v", err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("visualization: failed to save plot: %v", err)
	}
	return nil
}
