// Package analysis computes the descriptive statistics and correlations
// used to study mined repositories.
package analysis

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/github-mining/internal/domain"
)

// DropNaN returns the values of xs that are not NaN.
func DropNaN(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// Median returns the median of the non-NaN values, or NaN when none remain.
func Median(xs []float64) float64 {
	v, err := stats.Median(DropNaN(xs))
	if err != nil {
		return math.NaN()
	}
	return v
}

// Mean returns the mean of the non-NaN values, or NaN when none remain.
func Mean(xs []float64) float64 {
	v, err := stats.Mean(DropNaN(xs))
	if err != nil {
		return math.NaN()
	}
	return v
}

// Summarize returns the median, mean and sample standard deviation of the
// non-NaN values. The deviation needs two values.
func Summarize(xs []float64) domain.MetricSummary {
	data := DropNaN(xs)
	summary := domain.MetricSummary{Median: math.NaN(), Mean: math.NaN(), Std: math.NaN()}
	if len(data) == 0 {
		return summary
	}
	summary.Median, _ = stats.Median(data)
	summary.Mean, _ = stats.Mean(data)
	if len(data) > 1 {
		summary.Std, _ = stats.StandardDeviationSample(data)
	}
	return summary
}

// SummarizeCK summarizes the class-level CK columns of one repository.
// ok is false when one of the domain.CKMetrics columns is missing.
func SummarizeCK(repoKey string, columns map[string][]float64) (summary domain.CKSummary, ok bool) {
	summary = domain.CKSummary{RepoKey: repoKey, Metrics: make(map[string]domain.MetricSummary, len(domain.CKMetrics))}
	for _, m := range domain.CKMetrics {
		values, found := columns[m]
		if !found {
			return domain.CKSummary{}, false
		}
		summary.Metrics[m] = Summarize(values)
	}
	if total, err := stats.Sum(DropNaN(columns["loc"])); err == nil {
		summary.LOCTotal = total
	}
	return summary, true
}
