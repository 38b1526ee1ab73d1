// Package main renders diagnostics reports from a database sink.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"market-risk-lab/internal/cli"
	"market-risk-lab/internal/config"
	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/orchestrator"
	"market-risk-lab/internal/pipeline"
	"market-risk-lab/internal/reporting"
	"market-risk-lab/internal/storage"
)

func main() {
	var global cli.GlobalFlags
	var sinkName string

	root := &cobra.Command{
		Use:   "report",
		Short: "Inspect datasets stored in a database sink",
	}
	global.Bind(root)
	root.PersistentFlags().StringVar(&sinkName, "sink", "", "Sink to read: postgres, clickhouse or sqlite (default: first configured)")

	open := func(ctx context.Context) (*config.Config, storage.Sink, error) {
		cfg, err := global.Load(nil)
		if err != nil {
			return nil, storage.Sink{}, err
		}
		name := sinkName
		if name == "" {
			configured := orchestrator.ConfiguredSinks(cfg.Sinks)
			if len(configured) == 0 {
				return nil, storage.Sink{}, fmt.Errorf("%w: set sinks.postgres_dsn, sinks.clickhouse_dsn or sinks.sqlite_path",
					orchestrator.ErrSinkNotConfigured)
			}
			name = configured[0]
		}
		sink, err := orchestrator.OpenSink(ctx, cfg.Sinks, name)
		if err != nil {
			return nil, storage.Sink{}, err
		}
		return cfg, sink, nil
	}

	root.AddCommand(
		renderCommand(open),
		datasetsCommand(open),
		scoresCommand(open),
	)

	cli.Execute(root)
}

type openFunc func(ctx context.Context) (*config.Config, storage.Sink, error)

func renderCommand(open openFunc) *cobra.Command {
	var datasetID, output string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Rebuild a stored dataset and render its diagnostics as Markdown",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cli.SignalContext()
			defer cancel()

			cfg, sink, err := open(ctx)
			if err != nil {
				return err
			}
			defer sink.Close()

			gen := reporting.NewGenerator(sink.Features, sink.Scores, pipeline.DiagnosticsConfig(cfg))
			report, err := gen.Generate(ctx, datasetID)
			if err != nil {
				return err
			}
			report.Diagnostics.Log(cli.Logger(cfg))

			if output == "" {
				output = filepath.Join(cfg.Output.Dir, cfg.Diagnostics.ReportFile)
			}
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(output, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
				return err
			}

			fmt.Printf("Report for dataset %s (%s): %s\n", report.DatasetID, sink.Name, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetID, "dataset", "", "Dataset ID (default: the only stored dataset)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <output.dir>/<diagnostics.report_file>)")
	return cmd
}

func datasetsCommand(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List stored dataset IDs",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := cli.SignalContext()
			defer cancel()

			_, sink, err := open(ctx)
			if err != nil {
				return err
			}
			defer sink.Close()

			ids, err := sink.Scores.ListDatasets(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func scoresCommand(open openFunc) *cobra.Command {
	var datasetID, from, to string

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Print stored risk scores within a date range as CSV",
		RunE: func(_ *cobra.Command, _ []string) error {
			start, err := time.Parse(domain.DateLayout, from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			end, err := time.Parse(domain.DateLayout, to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			ctx, cancel := cli.SignalContext()
			defer cancel()

			cfg, sink, err := open(ctx)
			if err != nil {
				return err
			}
			defer sink.Close()

			id, err := reporting.NewGenerator(sink.Features, sink.Scores, pipeline.DiagnosticsConfig(cfg)).
				ResolveDataset(ctx, datasetID)
			if err != nil {
				return err
			}
			rows, err := sink.Scores.GetByTimeRange(ctx, id, start, end)
			if err != nil {
				return err
			}
			return writeScores(os.Stdout, rows)
		},
	}
	cmd.Flags().StringVar(&datasetID, "dataset", "", "Dataset ID (default: the only stored dataset)")
	cmd.Flags().StringVar(&from, "from", "", "First date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func writeScores(out *os.File, rows []*domain.RiskScoreRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{
		domain.ColumnDate, domain.VolColumn(7), domain.VolColumn(30), domain.VolColumn(90), domain.FlowFIINet.String(),
		domain.ColumnVolZ, domain.ColumnFlowZ, domain.ColumnRiskScore, domain.ColumnRiskRegime,
	}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			r.Date.Format(domain.DateLayout),
			formatPtr(r.Vol7d), formatPtr(r.Vol30d), formatPtr(r.Vol90d), formatPtr(r.FIINet),
			formatPtr(r.VolZ), formatPtr(r.FlowZ), formatPtr(r.Score),
			r.Regime.String(),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return reporting.FormatFloat(*v)
}
