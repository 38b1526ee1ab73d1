package risk

import (
	"math"
	"time"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/rolling"
)

// VolatilityConfig configures the standalone volatility-only regime analysis.
type VolatilityConfig struct {
	Score       Config
	Window      int     // rolling volatility window, rows
	TradingDays float64 // annualization factor applied as sqrt(TradingDays)
	Cap         float64 // annualized values above Cap are masked; 0 disables
}

// DefaultVolatilityConfig returns a 30-row window annualized by sqrt(252),
// masking annualized volatility above 100%.
func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		Score:       DefaultConfig(),
		Window:      30,
		TradingDays: 252,
		Cap:         1.0,
	}
}

// VolatilityPoint is one row of the volatility-only analysis.
type VolatilityPoint struct {
	Date          time.Time
	Close         float64
	Return        float64
	AnnualizedVol float64
	Z             float64
	Score         float64
	Regime        domain.Regime
}

// VolatilityRegimes scores a single close series on annualized volatility
// alone. Only rows with a defined score are returned.
func VolatilityRegimes(series *domain.Series, cfg VolatilityConfig) []VolatilityPoint {
	closes := make([]float64, len(series.Points))
	for i, p := range series.Points {
		closes[i] = p.Close
	}

	returns := rolling.PctChange(closes, 1)
	vol := rolling.PopStdDev(returns, cfg.Window)
	factor := math.Sqrt(cfg.TradingDays)
	for i := range vol {
		vol[i] *= factor
		if cfg.Cap > 0 && vol[i] > cfg.Cap {
			vol[i] = math.NaN()
		}
	}

	norm := Fit("annualized_vol", vol, cfg.Score.NormalizationWindow, cfg.Score.MinStdDev)

	var out []VolatilityPoint
	for i, p := range series.Points {
		z := norm.Z(vol[i])
		score := VolatilityOnlyScore(z, cfg.Score)
		if math.IsNaN(score) {
			continue
		}
		out = append(out, VolatilityPoint{
			Date:          p.Date,
			Close:         p.Close,
			Return:        returns[i],
			AnnualizedVol: vol[i],
			Z:             z,
			Score:         score,
			Regime:        Classify(score, cfg.Score),
		})
	}
	return out
}

// Column names of the volatility-only output table.
const (
	ColumnAnnualizedVol = "Annualized_Vol"
	ColumnVolOnlyScore  = "Risk_Score"
)

// VolatilityFrame lays points out as a frame with the instrument's close and
// return followed by annualized volatility, vol_z, Risk_Score and Risk_Regime.
func VolatilityFrame(name string, points []VolatilityPoint) (*domain.Frame, error) {
	n := len(points)
	dates := make([]time.Time, n)
	closes := make([]float64, n)
	returns := make([]float64, n)
	vols := make([]float64, n)
	zs := make([]float64, n)
	scores := make([]float64, n)
	regimes := make([]string, n)
	for i, p := range points {
		dates[i] = p.Date
		closes[i] = p.Close
		returns[i] = p.Return
		vols[i] = p.AnnualizedVol
		zs[i] = p.Z
		scores[i] = p.Score
		regimes[i] = p.Regime.String()
	}

	return domain.NewFrame(dates).With(
		domain.Column{Name: domain.CloseColumn(name), Values: closes},
		domain.Column{Name: domain.ReturnColumn(name), Values: returns},
		domain.Column{Name: ColumnAnnualizedVol, Values: vols},
		domain.Column{Name: domain.ColumnVolZ, Values: zs},
		domain.Column{Name: ColumnVolOnlyScore, Values: scores},
		domain.Column{Name: domain.ColumnRiskRegime, Labels: regimes},
	)
}

// CountRegimes tallies points per regime.
func CountRegimes(points []VolatilityPoint) map[domain.Regime]int {
	counts := make(map[domain.Regime]int, len(domain.Regimes))
	for _, p := range points {
		counts[p.Regime]++
	}
	return counts
}
