package domain

import "strconv"

// CKMetrics are the class-level CK metrics summarized per repository.
var CKMetrics = []string{"cbo", "dit", "lcom", "loc"}

// MetricSummary holds the central tendency of one metric. Fields are NaN
// when there were not enough samples.
type MetricSummary struct {
	Median float64
	Mean   float64
	Std    float64
}

// CKSummary holds the CK metric summaries of a single repository.
type CKSummary struct {
	// RepoKey is the directory name of the CK output, "owner__repo".
	RepoKey  string
	Metrics  map[string]MetricSummary
	LOCTotal float64
}

// CKSummaryColumns is the column order of the CK summary CSV.
func CKSummaryColumns() []string {
	cols := make([]string, 0, len(CKMetrics)*3+2)
	for _, m := range CKMetrics {
		cols = append(cols, m+"_median", m+"_mean", m+"_std")
	}
	return append(cols, "loc_total", "repo_key")
}

// Record returns s's values in CKSummaryColumns order.
func (s CKSummary) Record() []string {
	rec := make([]string, 0, len(CKMetrics)*3+2)
	for _, m := range CKMetrics {
		sum := s.Metrics[m]
		rec = append(rec, FormatFloat(sum.Median), FormatFloat(sum.Mean), FormatFloat(sum.Std))
	}
	return append(rec, FormatFloat(s.LOCTotal), s.RepoKey)
}

// Correlation is the Pearson and Spearman correlation between a process
// metric and a quality metric. Coefficients are NaN when N was too small.
type Correlation struct {
	XMetric     string
	YMetric     string
	PearsonR    float64
	PearsonP    float64
	SpearmanRho float64
	SpearmanP   float64
	N           int
}

// CorrelationColumns is the column order of the correlation CSV.
var CorrelationColumns = []string{
	"x_metric", "y_metric", "pearson_r", "pearson_pvalue",
	"spearman_rho", "spearman_pvalue", "n",
}

// Record returns c's values in CorrelationColumns order.
func (c Correlation) Record() []string {
	return []string{
		c.XMetric,
		c.YMetric,
		FormatFloat(c.PearsonR),
		FormatFloat(c.PearsonP),
		FormatFloat(c.SpearmanRho),
		FormatFloat(c.SpearmanP),
		strconv.Itoa(c.N),
	}
}
