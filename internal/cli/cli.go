// Package cli holds the flag and bootstrap code shared by the commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"market-risk-lab/internal/config"
	"market-risk-lab/internal/logger"
)

// GlobalFlags are the persistent flags every command accepts.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// Bind registers the persistent flags on root.
func (g *GlobalFlags) Bind(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", "", "YAML config file (env overrides use the "+config.EnvPrefix+"_ prefix)")
	root.PersistentFlags().StringVar(&g.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&g.LogFormat, "log-format", "", "Log format: json, console")
}

// Load reads the configuration, applies flag overrides and validates it.
func (g *GlobalFlags) Load(override func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Logging.Format = g.LogFormat
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger builds the root logger from the logging section.
func Logger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Execute runs root and exits non-zero on error.
func Execute(root *cobra.Command) {
	root.SilenceUsage = true
	root.SilenceErrors = true
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
