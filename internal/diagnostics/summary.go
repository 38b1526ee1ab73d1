package diagnostics

import (
	"math"
	"sort"
	"time"

	"market-risk-lab/internal/domain"
)

// RegimeSummary counts rows per regime and reports the latest state.
type RegimeSummary struct {
	Counts       map[domain.Regime]int
	Undefined    int // rows without a score
	LatestDate   time.Time
	LatestScore  float64
	LatestRegime domain.Regime
	ScoreP10     float64
	ScoreMedian  float64
	ScoreP90     float64
}

// SummarizeRegimes tallies regimes and score percentiles.
func SummarizeRegimes(dates []time.Time, scores []float64, regimes []string) RegimeSummary {
	s := RegimeSummary{
		Counts:      make(map[domain.Regime]int, len(domain.Regimes)),
		LatestScore: math.NaN(),
		ScoreP10:    math.NaN(),
		ScoreMedian: math.NaN(),
		ScoreP90:    math.NaN(),
	}

	var defined []float64
	for i, label := range regimes {
		r := domain.Regime(label)
		if !r.IsValid() {
			s.Undefined++
			continue
		}
		s.Counts[r]++
		s.LatestDate = dates[i]
		s.LatestScore = scores[i]
		s.LatestRegime = r
		defined = append(defined, scores[i])
	}

	if len(defined) > 0 {
		sort.Float64s(defined)
		s.ScoreP10 = percentile(defined, 0.10)
		s.ScoreMedian = percentile(defined, 0.50)
		s.ScoreP90 = percentile(defined, 0.90)
	}
	return s
}

// percentile uses linear interpolation between closest ranks.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
