package risk

import (
	"math"

	"market-risk-lab/internal/domain"
)

// Score computes clip(Base + VolWeight*volZ - FlowWeight*flowZ, MinScore, MaxScore).
// NaN when either z-score is undefined.
func Score(volZ, flowZ float64, cfg Config) float64 {
	if math.IsNaN(volZ) || math.IsNaN(flowZ) {
		return math.NaN()
	}
	return clip(cfg.Base+cfg.VolWeight*volZ-cfg.FlowWeight*flowZ, cfg.MinScore, cfg.MaxScore)
}

// VolatilityOnlyScore computes clip(Base + VolWeight*volZ, MinScore, MaxScore).
func VolatilityOnlyScore(volZ float64, cfg Config) float64 {
	return Score(volZ, 0, cfg)
}

// Classify maps a score to its regime. Boundaries belong to Medium:
// Low < LowThreshold <= Medium <= HighThreshold < High.
func Classify(score float64, cfg Config) domain.Regime {
	switch {
	case math.IsNaN(score):
		return domain.RegimeNone
	case score < cfg.LowThreshold:
		return domain.RegimeLow
	case score > cfg.HighThreshold:
		return domain.RegimeHigh
	default:
		return domain.RegimeMedium
	}
}

// clip bounds v to [lo, hi]. Infinite z-scores saturate at the bounds.
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
