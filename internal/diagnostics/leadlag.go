package diagnostics

import (
	"math"
)

// LagCorrelation is the correlation at one lag.
type LagCorrelation struct {
	Lag         int // positive: flow leads the return by Lag rows
	Correlation float64
}

// LeadLag is the lead-lag profile of flow against one instrument's return.
type LeadLag struct {
	Instrument string
	Lags       []LagCorrelation // ascending lag
	Peak       LagCorrelation   // highest correlation; Lag 0 and NaN when none defined
}

// shift returns xs moved down by lag rows (xs[t-lag] at row t), NaN-filled.
// Negative lags move values up.
func shift(xs []float64, lag int) []float64 {
	out := make([]float64, len(xs))
	for t := range out {
		src := t - lag
		if src < 0 || src >= len(xs) {
			out[t] = math.NaN()
			continue
		}
		out[t] = xs[src]
	}
	return out
}

// ComputeLeadLag correlates flow shifted by every lag in [-maxLag, maxLag]
// with ret, pairwise-complete.
func ComputeLeadLag(instrument string, flow, ret []float64, maxLag int) LeadLag {
	ll := LeadLag{
		Instrument: instrument,
		Peak:       LagCorrelation{Correlation: math.NaN()},
	}
	for lag := -maxLag; lag <= maxLag; lag++ {
		c := pearson(shift(flow, lag), ret)
		lc := LagCorrelation{Lag: lag, Correlation: c}
		ll.Lags = append(ll.Lags, lc)
		if !math.IsNaN(c) && (math.IsNaN(ll.Peak.Correlation) || c > ll.Peak.Correlation) {
			ll.Peak = lc
		}
	}
	return ll
}
