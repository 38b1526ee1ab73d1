package diagnostics

import (
	"math"
	"time"
)

// Drawdown is the worst peak-to-trough decline of a close series.
type Drawdown struct {
	Value    float64   // (close - running max) / running max, <= 0; NaN when undefined
	Date     time.Time // trough date
	PeakDate time.Time // date of the running max at the trough
	Index    int       // trough row, -1 when undefined
}

// MaxDrawdown computes the minimum of (close - cummax) / cummax.
// NaN closes are skipped and do not reset the running max.
// Closes must be in chronological order.
func MaxDrawdown(dates []time.Time, closes []float64) Drawdown {
	dd := Drawdown{Value: math.NaN(), Index: -1}

	peak := math.NaN()
	peakIdx := -1
	for i, c := range closes {
		if math.IsNaN(c) {
			continue
		}
		if math.IsNaN(peak) || c > peak {
			peak = c
			peakIdx = i
		}
		v := (c - peak) / peak
		if math.IsNaN(dd.Value) || v < dd.Value {
			dd.Value = v
			dd.Index = i
			dd.Date = dates[i]
			dd.PeakDate = dates[peakIdx]
		}
	}
	return dd
}
