// Package rolling applies fixed-size trailing window statistics to columns.
package rolling

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Apply evaluates fn over every trailing window of size window ending at
// row i, for i in [window-1, n). Rows before the first full window are NaN.
// fn receives the half-open row range [lo, hi).
func Apply(n, window int, fn func(lo, hi int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if window < 1 || i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(i-window+1, i+1)
	}
	return out
}

// Complete reports whether xs holds no NaN.
func Complete(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return false
		}
	}
	return true
}

// PopStdDev is the rolling population standard deviation. A window
// containing any NaN yields NaN.
func PopStdDev(xs []float64, window int) []float64 {
	return Apply(len(xs), window, func(lo, hi int) float64 {
		w := xs[lo:hi]
		if !Complete(w) {
			return math.NaN()
		}
		_, std := stat.PopMeanStdDev(w, nil)
		return std
	})
}

// Correlation is the rolling Pearson correlation of x and y. A window where
// either side has a NaN yields NaN.
func Correlation(x, y []float64, window int) []float64 {
	return Apply(len(x), window, func(lo, hi int) float64 {
		wx, wy := x[lo:hi], y[lo:hi]
		if !Complete(wx) || !Complete(wy) {
			return math.NaN()
		}
		return stat.Correlation(wx, wy, nil)
	})
}

// Beta is the rolling regression slope cov(x, m) / var(m) of x against a
// market series m. Windows with NaN, or with zero market variance, yield NaN.
func Beta(x, m []float64, window int) []float64 {
	return Apply(len(x), window, func(lo, hi int) float64 {
		wx, wm := x[lo:hi], m[lo:hi]
		if !Complete(wx) || !Complete(wm) {
			return math.NaN()
		}
		v := stat.Variance(wm, nil)
		if v == 0 {
			return math.NaN()
		}
		return stat.Covariance(wx, wm, nil) / v
	})
}

// PctChange returns x[t]/x[t-periods] - 1, NaN for the first periods rows.
// NaN and zero priors propagate per IEEE-754.
func PctChange(xs []float64, periods int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if periods < 1 || i < periods {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i]/xs[i-periods] - 1
	}
	return out
}

// PairwiseComplete returns the rows where both x and y are defined.
func PairwiseComplete(x, y []float64) ([]float64, []float64) {
	var ox, oy []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		ox = append(ox, x[i])
		oy = append(oy, y[i])
	}
	return ox, oy
}
