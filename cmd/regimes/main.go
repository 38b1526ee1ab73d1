// Package main runs the volatility-only regime analysis for one instrument.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"market-risk-lab/internal/cli"
	"market-risk-lab/internal/config"
	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/logger"
	"market-risk-lab/internal/pipeline"
	"market-risk-lab/internal/reporting"
	"market-risk-lab/internal/risk"
)

const defaultOutputFile = "market_risk_regimes.csv"

func main() {
	var global cli.GlobalFlags
	var (
		instrument string
		dataDir    string
		output     string
		window     int
	)

	root := &cobra.Command{
		Use:   "regimes",
		Short: "Score one instrument on annualized volatility alone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if window < 2 {
				return fmt.Errorf("--window must be at least 2, got %d", window)
			}
			cfg, err := global.Load(func(cfg *config.Config) {
				if cmd.Flags().Changed("data-dir") {
					cfg.Inputs.DataDir = dataDir
				}
			})
			if err != nil {
				return err
			}
			if instrument == "" {
				instrument = cfg.Benchmark
			}
			if output == "" {
				output = filepath.Join(cfg.Output.Dir, defaultOutputFile)
			}

			ctx, cancel := cli.SignalContext()
			defer cancel()

			log := logger.Component(cli.Logger(cfg), "regimes")

			batch, err := pipeline.NewLoader(cfg, log).LoadSeriesDir(ctx, cfg.Inputs.DataDir, instrument)
			if err != nil {
				return err
			}
			series := batch.Get(instrument)
			if series == nil {
				for _, s := range batch.Skipped {
					if s.Name == instrument {
						return fmt.Errorf("load %s: %w", instrument, s.Reason)
					}
				}
				return fmt.Errorf("no series file for %s in %s", instrument, cfg.Inputs.DataDir)
			}

			points := risk.VolatilityRegimes(series, pipeline.VolatilityConfig(cfg, window))
			if len(points) == 0 {
				return fmt.Errorf("%s: %d rows is too short for a %d-row volatility window", instrument, len(series.Points), window)
			}
			frame, err := risk.VolatilityFrame(instrument, points)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := reporting.WriteFrameCSV(&buf, frame); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return err
			}

			counts := risk.CountRegimes(points)
			last := points[len(points)-1]
			log.Info().
				Str("instrument", instrument).
				Int("rows", len(points)).
				Str("output", output).
				Msg("regime analysis written")

			fmt.Printf("Volatility regimes for %s (%d scored rows)\n", instrument, len(points))
			for _, r := range domain.Regimes {
				fmt.Printf("  %-6s %d\n", r, counts[r])
			}
			fmt.Printf("Latest: %s score %s (%s)\n", last.Date.Format(domain.DateLayout), reporting.FormatFloat(last.Score), last.Regime)
			fmt.Printf("Output: %s\n", output)
			return nil
		},
	}
	global.Bind(root)
	root.Flags().StringVarP(&instrument, "instrument", "i", "", "Instrument name (default: the configured benchmark)")
	root.Flags().StringVar(&dataDir, "data-dir", "", "Directory holding the instrument files")
	root.Flags().StringVarP(&output, "output", "o", "", "Output CSV (default: <output.dir>/"+defaultOutputFile+")")
	root.Flags().IntVar(&window, "window", 30, "Rolling volatility window, rows")

	cli.Execute(root)
}
