package usecase

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/naka-gawa/github-mining/internal/analysis"
	"github.com/naka-gawa/github-mining/internal/domain"
	"github.com/naka-gawa/github-mining/internal/report"
	"github.com/rs/zerolog"
)

// CorrelationsFile is the name of the correlation table in the output
// directory.
const CorrelationsFile = "correlations.csv"

// scatterMetrics are the quality columns drawn against every process column.
var scatterMetrics = []string{"cbo_mean", "dit_mean", "lcom_mean"}

// Correlations correlates every process metric with every quality metric
// present in the summary table.
func Correlations(summary *report.Table, minSamples int) []domain.Correlation {
	var out []domain.Correlation
	for _, p := range analysis.ProcessMetrics {
		x, ok := summary.Floats(p)
		if !ok {
			continue
		}
		for _, q := range analysis.QualityMetrics {
			y, ok := summary.Floats(q)
			if !ok {
				continue
			}
			out = append(out, analysis.Correlate(p, q, x, y, minSamples))
		}
	}
	return out
}

// AnalyzeCorrelations writes the correlation table and one scatter plot per
// process metric and mean quality metric with at least minSamples pairs.
// It returns the written plot paths.
func AnalyzeCorrelations(summary *report.Table, outDir string, minSamples int, logger zerolog.Logger) ([]string, error) {
	corr := Correlations(summary, minSamples)
	if err := report.WriteRecords(filepath.Join(outDir, CorrelationsFile), domain.CorrelationColumns, corr); err != nil {
		return nil, err
	}
	logger.Info().Int("pairs", len(corr)).Msg("Wrote correlation table")

	var plots []string
	for _, p := range analysis.ProcessMetrics {
		x, ok := summary.Floats(p)
		if !ok {
			continue
		}
		for _, q := range scatterMetrics {
			y, ok := summary.Floats(q)
			if !ok {
				continue
			}
			if xs, _ := analysis.Pairs(x, y); len(xs) < minSamples {
				continue
			}
			path := filepath.Join(outDir, fmt.Sprintf("scatter_%s_vs_%s.png", p, q))
			labels := report.Labels{Title: fmt.Sprintf("Scatter: %s vs %s", p, q), X: p, Y: q}
			if err := report.Scatter(path, labels, x, y); err != nil {
				return nil, err
			}
			plots = append(plots, path)
		}
	}
	logger.Info().Int("plots", len(plots)).Msg("Wrote scatter plots")
	return plots, nil
}

// ChartsDir is the directory, next to the report, holding its charts.
const ChartsDir = "charts"

// WriteReport renders the Markdown report of the repository search CSV at
// input to out, with its charts in a charts directory next to out.
func WriteReport(input, out string, now time.Time, logger zerolog.Logger) error {
	table, err := report.ReadTable(input)
	if err != nil {
		return err
	}
	summary := report.Summarize(table, input, now)
	chartsDir := filepath.Join(filepath.Dir(out), ChartsDir)

	names, counts := report.TopLanguages(summary, 10)
	chart := filepath.Join(chartsDir, "top_languages.png")
	labels := report.Labels{Title: "Top 10 Languages by Repo Count", X: "Language", Y: "Count"}
	if err := addChart(&summary, report.BarChart(chart, labels, names, counts), ChartsDir, chart, logger); err != nil {
		return err
	}

	stars, _ := table.Floats("stargazers_count")
	chart = filepath.Join(chartsDir, "stars_hist.png")
	labels = report.Labels{Title: "Stars Distribution", X: "Stars", Y: "Frequency"}
	if err := addChart(&summary, report.Histogram(chart, labels, stars, 40), ChartsDir, chart, logger); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", out, err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := report.RenderMarkdown(f, summary); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", out, err)
	}
	logger.Info().Str("report", out).Str("charts", chartsDir).Int("rows", summary.Rows).Msg("Wrote report")
	return nil
}

func addChart(s *report.Summary, err error, dir, path string, logger zerolog.Logger) error {
	if errors.Is(err, report.ErrNoData) {
		logger.Warn().Str("chart", path).Msg("No data for chart, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	s.Charts = append(s.Charts, filepath.ToSlash(filepath.Join(dir, filepath.Base(path))))
	return nil
}
