// Package risk normalizes volatility and flow into z-scores and combines
// them into a bounded composite score with discrete regimes.
package risk

import (
	"errors"
	"fmt"

	"market-risk-lab/internal/domain"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid risk config")

// Config holds composite score weights and numerical policies.
type Config struct {
	VolColumn  string // e.g. Vol_30d
	FlowColumn string // e.g. FII_Net

	Base       float64
	VolWeight  float64
	FlowWeight float64
	MinScore   float64
	MaxScore   float64

	// Regime boundaries. Scores equal to either threshold are Medium.
	LowThreshold  float64
	HighThreshold float64

	// MinStdDev replaces a zero standard deviation in z-score denominators.
	MinStdDev float64

	// NormalizationWindow limits the fit to the trailing N observations; 0 = full sample.
	NormalizationWindow int
}

// DefaultConfig returns the standard composite: clip(50 + 12*vol_z - 6*fii_z, 0, 100).
func DefaultConfig() Config {
	return Config{
		VolColumn:     domain.VolColumn(30),
		FlowColumn:    domain.FlowFIINet.String(),
		Base:          50,
		VolWeight:     12,
		FlowWeight:    6,
		MinScore:      0,
		MaxScore:      100,
		LowThreshold:  40,
		HighThreshold: 60,
		MinStdDev:     1e-6,
	}
}

// Validate checks bounds and thresholds.
func (c Config) Validate() error {
	switch {
	case c.VolColumn == "" || c.FlowColumn == "":
		return fmt.Errorf("%w: source columns must be set", ErrInvalidConfig)
	case c.MaxScore <= c.MinScore:
		return fmt.Errorf("%w: max score %g <= min score %g", ErrInvalidConfig, c.MaxScore, c.MinScore)
	case c.HighThreshold < c.LowThreshold:
		return fmt.Errorf("%w: high threshold %g < low threshold %g", ErrInvalidConfig, c.HighThreshold, c.LowThreshold)
	case c.MinStdDev <= 0:
		return fmt.Errorf("%w: min stddev must be positive", ErrInvalidConfig)
	case c.NormalizationWindow < 0:
		return fmt.Errorf("%w: negative normalization window", ErrInvalidConfig)
	}
	return nil
}
