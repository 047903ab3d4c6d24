package analysis

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/github-mining/internal/domain"
	"gonum.org/v1/gonum/stat/distuv"
)

// ProcessMetrics are the repository process columns correlated against
// the quality metrics.
var ProcessMetrics = []string{"stargazers_count", "releases_count", "age_years", "loc_total"}

// QualityMetrics are the summarized CK columns.
var QualityMetrics = []string{
	"cbo_median", "cbo_mean", "cbo_std",
	"dit_median", "dit_mean", "dit_std",
	"lcom_median", "lcom_mean", "lcom_std",
}

// DefaultMinSamples is the smallest N for which coefficients are computed.
const DefaultMinSamples = 5

// Pairs returns the pairs of x and y where neither value is NaN.
func Pairs(x, y []float64) (xs, ys []float64) {
	n := min(len(x), len(y))
	xs = make([]float64, 0, n)
	ys = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// Correlate computes Pearson and Spearman coefficients with two-sided
// p-values over the complete pairs of x and y. Coefficients stay NaN when
// fewer than minSamples pairs remain or either side is constant.
func Correlate(xName, yName string, x, y []float64, minSamples int) domain.Correlation {
	xs, ys := Pairs(x, y)
	c := domain.Correlation{
		XMetric:     xName,
		YMetric:     yName,
		PearsonR:    math.NaN(),
		PearsonP:    math.NaN(),
		SpearmanRho: math.NaN(),
		SpearmanP:   math.NaN(),
		N:           len(xs),
	}
	if c.N < minSamples || c.N < 3 {
		return c
	}

	c.PearsonR = Pearson(xs, ys)
	c.PearsonP = PValue(c.PearsonR, c.N)
	c.SpearmanRho = Spearman(xs, ys)
	c.SpearmanP = PValue(c.SpearmanRho, c.N)
	return c
}

// Pearson returns the Pearson correlation coefficient of x and y, or NaN
// when it is undefined.
func Pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) || constant(x) || constant(y) {
		return math.NaN()
	}
	r, err := stats.Pearson(x, y)
	if err != nil {
		return math.NaN()
	}
	return clamp(r)
}

// Spearman returns the Spearman rank correlation of x and y: the Pearson
// coefficient of their ranks, ties sharing the average rank.
func Spearman(x, y []float64) float64 {
	return Pearson(Rank(x), Rank(y))
}

// Rank returns the 1-based ranks of xs. Tied values receive the average of
// the ranks they span.
func Rank(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ranks := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && xs[idx[j]] == xs[idx[i]] {
			j++
		}
		// positions i..j-1 hold ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// PValue returns the two-sided p-value of correlation r over n pairs under
// the null hypothesis of no correlation, using Student's t with n-2
// degrees of freedom.
func PValue(r float64, n int) float64 {
	if math.IsNaN(r) || n < 3 {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(t))
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func clamp(r float64) float64 {
	return math.Max(-1, math.Min(1, r))
}
