package pipeline

import (
	"bytes"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"market-risk-lab/internal/config"
	"market-risk-lab/internal/diagnostics"
	"market-risk-lab/internal/features"
	"market-risk-lab/internal/normalization"
	"market-risk-lab/internal/risk"
	"market-risk-lab/internal/schema"
)

// NewLoader returns a normalization runner using the schema section's
// column mappings.
func NewLoader(cfg *config.Config, log zerolog.Logger) *normalization.Runner {
	return normalization.NewRunner(log).
		WithSeriesMapping(func(instrument string) schema.SeriesMapping {
			m := cfg.Schema.SeriesMapping(instrument)
			return schema.SeriesMapping{Date: m.Date, Close: m.Close}
		}).
		WithFlowMapping(cfg.Schema.FlowDate, cfg.Schema.FlowMapping())
}

// FeatureConfig maps the features section onto features.Config.
func FeatureConfig(cfg *config.Config) features.Config {
	return features.Config{
		Benchmark:      cfg.Benchmark,
		VolWindows:     cfg.Features.VolWindows,
		MomentumPeriod: cfg.Features.MomentumPeriod,
	}
}

// RiskConfig maps the risk section onto risk.Config.
func RiskConfig(cfg *config.Config) risk.Config {
	c := cfg.Risk
	return risk.Config{
		VolColumn:           c.VolColumn,
		FlowColumn:          c.FlowColumn,
		Base:                c.Base,
		VolWeight:           c.VolWeight,
		FlowWeight:          c.FlowWeight,
		MinScore:            c.MinScore,
		MaxScore:            c.MaxScore,
		LowThreshold:        c.LowThreshold,
		HighThreshold:       c.HighThreshold,
		MinStdDev:           c.MinStdDev,
		NormalizationWindow: c.NormalizationWindow,
	}
}

// DiagnosticsConfig maps the diagnostics section onto diagnostics.Config.
func DiagnosticsConfig(cfg *config.Config) diagnostics.Config {
	return diagnostics.Config{
		Benchmark:  cfg.Benchmark,
		FlowColumn: cfg.Risk.FlowColumn,
		CorrWindow: cfg.Diagnostics.CorrWindow,
		BetaWindow: cfg.Diagnostics.BetaWindow,
		MaxLag:     cfg.Diagnostics.MaxLag,
	}
}

// VolatilityConfig maps the risk section onto the volatility-only analysis
// with the given rolling window.
func VolatilityConfig(cfg *config.Config, window int) risk.VolatilityConfig {
	return risk.VolatilityConfig{
		Score:       RiskConfig(cfg),
		Window:      window,
		TradingDays: cfg.Risk.TradingDays,
		Cap:         cfg.Risk.AnnualizedVolCap,
	}
}

// getGitCommitHash returns current git commit hash or "unknown" if not in git repo.
func getGitCommitHash() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "unknown"
	}
	return strings.TrimSpace(out.String())
}
