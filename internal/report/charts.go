package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/naka-gawa/github-mining/internal/analysis"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no data to plot")

// Labels names a chart and its axes.
type Labels struct {
	Title string
	X     string
	Y     string
}

func newPlot(l Labels) *plot.Plot {
	p := plot.New()
	p.Title.Text = l.Title
	p.X.Label.Text = l.X
	p.Y.Label.Text = l.Y
	return p
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return fmt.Errorf("failed to save chart %s: %w", path, err)
	}
	return nil
}

// BarChart draws one bar per label.
func BarChart(path string, l Labels, names []string, values []float64) error {
	if len(values) == 0 {
		return ErrNoData
	}
	p := newPlot(l)
	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(20))
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(names...)
	return save(p, path)
}

// Histogram draws the distribution of values in the given number of bins.
// NaN values are ignored.
func Histogram(path string, l Labels, values []float64, bins int) error {
	data := analysis.DropNaN(values)
	if len(data) == 0 {
		return ErrNoData
	}
	p := newPlot(l)
	hist, err := plotter.NewHist(plotter.Values(data), bins)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	p.Add(hist)
	return save(p, path)
}

// Scatter draws the complete pairs of x and y.
func Scatter(path string, l Labels, x, y []float64) error {
	xs, ys := analysis.Pairs(x, y)
	if len(xs) == 0 {
		return ErrNoData
	}
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	p := newPlot(l)
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter plot: %w", err)
	}
	p.Add(s)
	return save(p, path)
}
