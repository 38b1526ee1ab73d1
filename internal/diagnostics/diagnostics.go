// Package diagnostics computes read-only analytics over the scored master
// table. Nothing here feeds back into features or scoring.
package diagnostics

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/lookup"
	"market-risk-lab/internal/rolling"
)

// Config holds diagnostics parameters.
type Config struct {
	Benchmark  string
	FlowColumn string // lead-lag source, e.g. FII_Net
	CorrWindow int
	BetaWindow int
	MaxLag     int
}

// DefaultConfig returns 30-row rolling windows and lags in [-10, 10].
func DefaultConfig(benchmark string) Config {
	return Config{
		Benchmark:  benchmark,
		FlowColumn: domain.FlowFIINet.String(),
		CorrWindow: 30,
		BetaWindow: 30,
		MaxLag:     10,
	}
}

// Result bundles every diagnostic for one dataset.
type Result struct {
	Rows         int
	Start, End   time.Time
	Correlations []SeriesSummary // rolling correlation vs the benchmark, per instrument
	Betas        []SeriesSummary // rolling beta vs the benchmark, per instrument
	Drawdown     Drawdown
	LeadLag      []LeadLag
	Matrix       CorrelationMatrix
	Momentum     Momentum
	Regimes      RegimeSummary
}

// CorrelationColumns returns the rolling correlation columns for persistence.
func (r *Result) CorrelationColumns() []domain.Column {
	cols := make([]domain.Column, len(r.Correlations))
	for i, c := range r.Correlations {
		cols[i] = domain.Column{Name: c.Column, Values: c.Values}
	}
	return cols
}

// Run computes all diagnostics. Missing inputs shrink the result rather
// than failing: no benchmark return means no correlation, beta or drawdown.
func Run(frame *domain.Frame, cfg Config) (*Result, error) {
	if cfg.CorrWindow < 2 || cfg.BetaWindow < 2 || cfg.MaxLag < 0 {
		return nil, fmt.Errorf("invalid diagnostics config: corr window %d, beta window %d, max lag %d",
			cfg.CorrWindow, cfg.BetaWindow, cfg.MaxLag)
	}

	dates := frame.Dates()
	res := &Result{Rows: frame.Len()}
	if len(dates) > 0 {
		res.Start, res.End = dates[0], dates[len(dates)-1]
	}

	benchReturn, hasBench := frame.Float(domain.ReturnColumn(cfg.Benchmark))

	var instruments []string
	var returns [][]float64
	for _, name := range frame.NamesWithSuffix(domain.SuffixReturn) {
		instrument, _ := domain.InstrumentFromColumn(name, domain.SuffixReturn)
		values, _ := frame.Float(name)
		instruments = append(instruments, instrument)
		returns = append(returns, values)
	}

	if hasBench {
		for i, instrument := range instruments {
			if instrument == cfg.Benchmark {
				continue
			}
			res.Correlations = append(res.Correlations, summarize(instrument, domain.CorrColumn(instrument),
				rolling.Correlation(returns[i], benchReturn, cfg.CorrWindow)))
			res.Betas = append(res.Betas, summarize(instrument, instrument+"_Beta",
				rolling.Beta(returns[i], benchReturn, cfg.BetaWindow)))
		}
	}

	res.Drawdown = Drawdown{Value: math.NaN(), Index: -1}
	if closes, ok := frame.Float(domain.CloseColumn(cfg.Benchmark)); ok {
		res.Drawdown = MaxDrawdown(dates, closes)

		if idx, err := lookup.Latest(dates, closes); err == nil {
			names, values := momentumAt(frame, idx)
			benchMomentum := math.NaN()
			if m, ok := frame.Float(domain.MomentumColumn(cfg.Benchmark)); ok {
				benchMomentum = m[idx]
			}
			res.Momentum = RankMomentum(dates[idx], names, values, benchMomentum)
		}
	}

	if flow, ok := frame.Float(cfg.FlowColumn); ok {
		for i, instrument := range instruments {
			res.LeadLag = append(res.LeadLag, ComputeLeadLag(instrument, flow, returns[i], cfg.MaxLag))
		}
	}

	res.Matrix = Correlations(instruments, returns)

	scores, hasScores := frame.Float(domain.ColumnRiskScore)
	regimes, hasRegimes := frame.Labels(domain.ColumnRiskRegime)
	if hasScores && hasRegimes {
		res.Regimes = SummarizeRegimes(dates, scores, regimes)
	}

	return res, nil
}

// momentumAt returns every instrument's momentum value at row idx.
func momentumAt(frame *domain.Frame, idx int) ([]string, []float64) {
	var names []string
	var values []float64
	for _, name := range frame.NamesWithSuffix(domain.SuffixMomentum) {
		instrument, _ := domain.InstrumentFromColumn(name, domain.SuffixMomentum)
		col, _ := frame.Float(name)
		names = append(names, instrument)
		values = append(values, col[idx])
	}
	return names, values
}

// Log writes the headline diagnostics at info level.
func (r *Result) Log(log zerolog.Logger) {
	log.Info().
		Int("rows", r.Rows).
		Str("start", r.Start.Format(domain.DateLayout)).
		Str("end", r.End.Format(domain.DateLayout)).
		Msg("diagnostics")

	for _, c := range r.Correlations {
		log.Info().
			Str("instrument", c.Instrument).
			Float64("latest", c.Latest).
			Float64("mean", c.Mean).
			Int("defined", c.Defined).
			Msg("rolling correlation vs benchmark")
	}
	for _, b := range r.Betas {
		log.Info().
			Str("instrument", b.Instrument).
			Float64("latest", b.Latest).
			Float64("mean", b.Mean).
			Msg("rolling beta vs benchmark")
	}
	if r.Drawdown.Index >= 0 {
		log.Info().
			Float64("max_drawdown", r.Drawdown.Value).
			Str("date", r.Drawdown.Date.Format(domain.DateLayout)).
			Str("peak_date", r.Drawdown.PeakDate.Format(domain.DateLayout)).
			Msg("benchmark drawdown")
	}
	for _, ll := range r.LeadLag {
		log.Info().
			Str("instrument", ll.Instrument).
			Int("peak_lag", ll.Peak.Lag).
			Float64("peak_corr", ll.Peak.Correlation).
			Msg("flow lead-lag")
	}
	if r.Regimes.LatestRegime.IsValid() {
		log.Info().
			Int("low", r.Regimes.Counts[domain.RegimeLow]).
			Int("medium", r.Regimes.Counts[domain.RegimeMedium]).
			Int("high", r.Regimes.Counts[domain.RegimeHigh]).
			Int("undefined", r.Regimes.Undefined).
			Float64("latest_score", r.Regimes.LatestScore).
			Str("latest_regime", r.Regimes.LatestRegime.String()).
			Msg("risk regimes")
	}
}
