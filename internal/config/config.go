// Package config loads pipeline configuration from YAML and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"market-risk-lab/internal/domain"
)

// EnvPrefix is the prefix for environment overrides, e.g. RISKLAB_BENCHMARK.
const EnvPrefix = "RISKLAB"

// Config represents the complete pipeline configuration
type Config struct {
	Benchmark   string            `mapstructure:"benchmark" validate:"required"`
	Inputs      InputsConfig      `mapstructure:"inputs"`
	Schema      SchemaConfig      `mapstructure:"schema"`
	Features    FeaturesConfig    `mapstructure:"features"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Output      OutputConfig      `mapstructure:"output"`
	Sinks       SinksConfig       `mapstructure:"sinks"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// InputsConfig locates the raw input files
type InputsConfig struct {
	DataDir    string `mapstructure:"data_dir" validate:"required"`
	SeriesGlob string `mapstructure:"series_glob" validate:"required"` // matched against base names, extension excluded
	FlowFile   string `mapstructure:"flow_file"`                       // relative to DataDir; empty = no flow input
}

// ColumnMapping names the physical columns of one price table
type ColumnMapping struct {
	Date  string `mapstructure:"date"`
	Close string `mapstructure:"close"`
}

// SchemaConfig maps physical input columns to canonical fields.
// Unmapped fields fall back to heuristic discovery.
type SchemaConfig struct {
	SeriesDefault ColumnMapping            `mapstructure:"series_default"`
	Series        map[string]ColumnMapping `mapstructure:"series"` // keyed by instrument name
	FlowDate      string                   `mapstructure:"flow_date"`
	Flow          map[string]string        `mapstructure:"flow"` // canonical field (FII_Buy...) -> physical column
}

// FeaturesConfig holds Feature Deriver windows
type FeaturesConfig struct {
	VolWindows     []int `mapstructure:"vol_windows" validate:"required,min=1,dive,gt=1"`
	MomentumPeriod int   `mapstructure:"momentum_period" validate:"gt=0"`
}

// RiskConfig holds composite score weights and numerical policies
type RiskConfig struct {
	VolColumn           string  `mapstructure:"vol_column" validate:"required"`
	FlowColumn          string  `mapstructure:"flow_column" validate:"required"`
	Base                float64 `mapstructure:"base"`
	VolWeight           float64 `mapstructure:"vol_weight"`
	FlowWeight          float64 `mapstructure:"flow_weight"`
	MinScore            float64 `mapstructure:"min_score"`
	MaxScore            float64 `mapstructure:"max_score" validate:"gtfield=MinScore"`
	LowThreshold        float64 `mapstructure:"low_threshold"`
	HighThreshold       float64 `mapstructure:"high_threshold" validate:"gtefield=LowThreshold"`
	MinStdDev           float64 `mapstructure:"min_stddev" validate:"gt=0"`
	NormalizationWindow int     `mapstructure:"normalization_window" validate:"gte=0"` // 0 = full sample
	TradingDays         float64 `mapstructure:"trading_days" validate:"gt=0"`          // annualization for volatility-only analysis
	AnnualizedVolCap    float64 `mapstructure:"annualized_vol_cap" validate:"gte=0"`   // 0 disables masking
}

// DiagnosticsConfig holds read-only analytics settings
type DiagnosticsConfig struct {
	CorrWindow          int    `mapstructure:"corr_window" validate:"gt=1"`
	BetaWindow          int    `mapstructure:"beta_window" validate:"gt=1"`
	MaxLag              int    `mapstructure:"max_lag" validate:"gte=0"`
	PersistCorrelations bool   `mapstructure:"persist_correlations"`
	ReportFile          string `mapstructure:"report_file"`
}

// OutputConfig names the files written by the pipeline
type OutputConfig struct {
	Dir         string `mapstructure:"dir" validate:"required"`
	FinalFile   string `mapstructure:"final_file" validate:"required"`
	MasterFile  string `mapstructure:"master_file"`  // pre-feature master table; empty = skip
	CleanFlow   string `mapstructure:"clean_flow"`   // normalized flow table; empty = skip
	ParquetFile string `mapstructure:"parquet_file"` // parquet mirror of final file; empty = skip
}

// SinksConfig holds optional database mirrors
type SinksConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	Required      bool   `mapstructure:"required"` // sink failures abort the run
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Textfile  string `mapstructure:"textfile"` // node_exporter textfile output; empty = skip
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from an optional file and environment variables.
// An empty path loads defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// SeriesMapping returns the column mapping for one instrument. Per-instrument
// entries override series_default field by field. Viper lower-cases map keys,
// so instruments are matched case-insensitively.
func (s SchemaConfig) SeriesMapping(instrument string) ColumnMapping {
	m := s.SeriesDefault
	for name, override := range s.Series {
		if !strings.EqualFold(name, instrument) {
			continue
		}
		if override.Date != "" {
			m.Date = override.Date
		}
		if override.Close != "" {
			m.Close = override.Close
		}
	}
	return m
}

// FlowMapping returns the explicit flow mapping keyed by canonical field.
// Unknown fields are ignored here and rejected by Validate.
func (s SchemaConfig) FlowMapping() map[domain.FlowField]string {
	out := make(map[domain.FlowField]string, len(s.Flow))
	for name, column := range s.Flow {
		if f, ok := domain.ParseFlowField(name); ok && column != "" {
			out[f] = column
		}
	}
	return out
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("benchmark", "NIFTY_50")

	v.SetDefault("inputs.data_dir", "./data")
	v.SetDefault("inputs.series_glob", "NIFTY_*")
	v.SetDefault("inputs.flow_file", "FiiDiiTradingactivity.csv")

	v.SetDefault("features.vol_windows", []int{7, 30, 90})
	v.SetDefault("features.momentum_period", 30)

	v.SetDefault("risk.vol_column", "Vol_30d")
	v.SetDefault("risk.flow_column", "FII_Net")
	v.SetDefault("risk.base", 50.0)
	v.SetDefault("risk.vol_weight", 12.0)
	v.SetDefault("risk.flow_weight", 6.0)
	v.SetDefault("risk.min_score", 0.0)
	v.SetDefault("risk.max_score", 100.0)
	v.SetDefault("risk.low_threshold", 40.0)
	v.SetDefault("risk.high_threshold", 60.0)
	v.SetDefault("risk.min_stddev", 1e-6)
	v.SetDefault("risk.normalization_window", 0)
	v.SetDefault("risk.trading_days", 252.0)
	v.SetDefault("risk.annualized_vol_cap", 1.0)

	v.SetDefault("diagnostics.corr_window", 30)
	v.SetDefault("diagnostics.beta_window", 30)
	v.SetDefault("diagnostics.max_lag", 10)
	v.SetDefault("diagnostics.persist_correlations", false)
	v.SetDefault("diagnostics.report_file", "DIAGNOSTICS.md")

	v.SetDefault("output.dir", "./data")
	v.SetDefault("output.final_file", "master_market_data_final.csv")
	v.SetDefault("output.master_file", "master_market_data.csv")
	v.SetDefault("output.clean_flow", "FII_DII_cleaned.csv")
	v.SetDefault("output.parquet_file", "")

	v.SetDefault("sinks.required", false)

	v.SetDefault("metrics.namespace", "market_risk_lab")
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	hasVolColumn := false
	for _, w := range c.Features.VolWindows {
		if domain.VolColumn(w) == c.Risk.VolColumn {
			hasVolColumn = true
			break
		}
	}
	if !hasVolColumn {
		return fmt.Errorf("risk.vol_column %q is not produced by features.vol_windows %v", c.Risk.VolColumn, c.Features.VolWindows)
	}

	if c.Risk.LowThreshold < c.Risk.MinScore || c.Risk.HighThreshold > c.Risk.MaxScore {
		return fmt.Errorf("risk thresholds [%g, %g] must lie within [%g, %g]",
			c.Risk.LowThreshold, c.Risk.HighThreshold, c.Risk.MinScore, c.Risk.MaxScore)
	}

	for field := range c.Schema.Flow {
		if _, ok := domain.ParseFlowField(field); !ok {
			return fmt.Errorf("schema.flow: unknown canonical field %q", field)
		}
	}

	return nil
}
