package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Normalizer holds z-score constants fitted on one column.
type Normalizer struct {
	Column     string
	Absent     bool    // source column missing: z is constantly 0
	N          int     // observations used in the fit
	Mean       float64
	StdDev     float64 // sample stddev (n-1); MinStdDev when the sample is degenerate
	Degenerate bool    // true when the observed stddev was 0
}

// Fit estimates mean and sample standard deviation from the non-missing
// values of a column. With window > 0 only the trailing window
// non-missing observations are used. A nil values slice marks an absent
// column.
func Fit(column string, values []float64, window int, minStdDev float64) Normalizer {
	if values == nil {
		return Normalizer{Column: column, Absent: true}
	}

	obs := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			obs = append(obs, v)
		}
	}
	if window > 0 && len(obs) > window {
		obs = obs[len(obs)-window:]
	}

	n := Normalizer{Column: column, N: len(obs)}
	if n.N < 2 {
		n.Mean, n.StdDev = math.NaN(), math.NaN()
		return n
	}

	n.Mean, n.StdDev = stat.MeanStdDev(obs, nil)
	if n.StdDev == 0 {
		n.StdDev = minStdDev
		n.Degenerate = true
	}
	return n
}

// Defined reports whether Apply yields usable z-scores.
func (n Normalizer) Defined() bool {
	return n.Absent || n.N >= 2
}

// Z returns the z-score of a single value.
func (n Normalizer) Z(v float64) float64 {
	if n.Absent {
		return 0
	}
	if n.N < 2 {
		return math.NaN()
	}
	return (v - n.Mean) / n.StdDev
}

// Apply returns z-scores for every row. rows is used when the column is absent.
func (n Normalizer) Apply(values []float64, rows int) []float64 {
	if n.Absent {
		return make([]float64, rows)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = n.Z(v)
	}
	return out
}
