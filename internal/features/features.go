// Package features derives returns, momentum and rolling volatility from
// the master table.
package features

import (
	"errors"
	"fmt"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/rolling"
)

// Errors returned by Derive.
var (
	ErrInvalidWindow    = errors.New("invalid window")
	ErrNoBenchmarkClose = errors.New("benchmark close column missing")
)

// Config holds Feature Deriver parameters.
type Config struct {
	Benchmark      string
	VolWindows     []int // rolling volatility windows, in rows
	MomentumPeriod int   // period of the <Name>_30dRet column
}

// DefaultConfig returns 7/30/90-row volatility and 30-row momentum for benchmark.
func DefaultConfig(benchmark string) Config {
	return Config{
		Benchmark:      benchmark,
		VolWindows:     []int{7, 30, 90},
		MomentumPeriod: 30,
	}
}

// Validate checks window sizes.
func (c Config) Validate() error {
	if c.MomentumPeriod < 1 {
		return fmt.Errorf("momentum period %d: %w", c.MomentumPeriod, ErrInvalidWindow)
	}
	for _, w := range c.VolWindows {
		if w < 2 {
			return fmt.Errorf("volatility window %d: %w", w, ErrInvalidWindow)
		}
	}
	return nil
}

// Derive appends, for every <Name>_Close column in frame order,
// <Name>_Return and <Name>_30dRet, then one Vol_<N>d column per window
// computed on the benchmark return. Input columns are never modified.
//
// Formulas:
//   - return[t] = close[t]/close[t-1] - 1, NaN on the first row
//   - ret30[t] = close[t]/close[t-p] - 1, NaN on the first p rows
//   - Vol_Nd[t] = population stddev of benchmark return over rows (t-N, t],
//     NaN on the first N-1 rows and wherever the window holds a NaN
func Derive(frame *domain.Frame, cfg Config) (*domain.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !frame.Has(domain.CloseColumn(cfg.Benchmark)) {
		return nil, fmt.Errorf("%s: %w", cfg.Benchmark, ErrNoBenchmarkClose)
	}

	var cols []domain.Column
	var benchReturn []float64

	for _, name := range frame.NamesWithSuffix(domain.SuffixClose) {
		instrument, _ := domain.InstrumentFromColumn(name, domain.SuffixClose)
		closes, _ := frame.Float(name)

		ret := rolling.PctChange(closes, 1)
		cols = append(cols,
			domain.Column{Name: domain.ReturnColumn(instrument), Values: ret},
			domain.Column{Name: domain.MomentumColumn(instrument), Values: rolling.PctChange(closes, cfg.MomentumPeriod)},
		)
		if instrument == cfg.Benchmark {
			benchReturn = ret
		}
	}

	for _, w := range cfg.VolWindows {
		cols = append(cols, domain.Column{
			Name:   domain.VolColumn(w),
			Values: rolling.PopStdDev(benchReturn, w),
		})
	}

	out, err := frame.With(cols...)
	if err != nil {
		return nil, fmt.Errorf("derive features: %w", err)
	}
	return out, nil
}
