// Package pipeline runs the load, merge, feature, scoring and diagnostics
// stages in order and writes the output files.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-risk-lab/internal/alignment"
	"market-risk-lab/internal/config"
	"market-risk-lab/internal/diagnostics"
	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/features"
	"market-risk-lab/internal/idhash"
	"market-risk-lab/internal/logger"
	"market-risk-lab/internal/normalization"
	"market-risk-lab/internal/observability"
	"market-risk-lab/internal/reporting"
	"market-risk-lab/internal/risk"
	"market-risk-lab/internal/storage"
)

// GeneratorVersion identifies the output layout for reproducibility.
const GeneratorVersion = "1.0.0"

// ErrBenchmarkMissing is returned when the benchmark instrument did not load.
var ErrBenchmarkMissing = fmt.Errorf("required benchmark not loaded: %w", alignment.ErrBenchmarkMissing)

// Stage names.
const (
	StageLoadSeries   = "load_series"
	StageLoadFlow     = "load_flow"
	StageMerge        = "merge"
	StageFeatures     = "features"
	StageRisk         = "risk"
	StageDiagnostics  = "diagnostics"
	StageSufficiency  = "sufficiency"
	StageWriteOutput  = "write_output"
	StageWriteReport  = "write_report"
	stageSinkPrefix   = "sink:"
	defaultRunCommand = "pipeline run"
)

// StageResult is the outcome of one stage.
type StageResult struct {
	Name     string
	Status   string // observability.StatusPass, StatusDegraded or StatusFail
	Detail   string
	Duration time.Duration
}

// Pass reports whether the stage completed without degradation.
func (s StageResult) Pass() bool {
	return s.Status == observability.StatusPass
}

// Result is everything one run produced.
type Result struct {
	RunID       string
	DatasetID   string        // fingerprint of the final output file
	Master      *domain.Frame // merged table before features
	Frame       *domain.Frame // final scored table
	Flow        *domain.FlowTable
	Fitted      risk.Fitted
	Diagnostics *diagnostics.Result
	Sufficiency *SufficiencyResult
	Report      *reporting.Report
	Stages      []StageResult
	Warnings    []string // degraded conditions
	Outputs     []string // files written, in order
}

// Degraded reports whether any stage degraded.
func (r *Result) Degraded() bool {
	for _, s := range r.Stages {
		if s.Status == observability.StatusDegraded {
			return true
		}
	}
	return false
}

// Stage returns the named stage result.
func (r *Result) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Runner executes the pipeline stages sequentially.
type Runner struct {
	cfg      *config.Config
	log      zerolog.Logger
	sinks    []storage.Sink
	metrics  *observability.Metrics
	clock    func() time.Time
	command  string
	warnings []string // conditions found before the run, e.g. sinks that failed to open
}

// NewRunner creates a pipeline runner for cfg.
func NewRunner(cfg *config.Config, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		log:     logger.Component(log, "pipeline"),
		clock:   func() time.Time { return time.Now().UTC() },
		command: defaultRunCommand,
	}
}

// WithSinks adds database mirrors of the scored dataset.
func (r *Runner) WithSinks(sinks ...storage.Sink) *Runner {
	r.sinks = append(r.sinks, sinks...)
	return r
}

// WithMetrics records stage and run metrics into m.
func (r *Runner) WithMetrics(m *observability.Metrics) *Runner {
	r.metrics = m
	return r
}

// WithClock sets a custom clock function for deterministic output.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// WithCommand sets the command line recorded for reproducibility.
func (r *Runner) WithCommand(command string) *Runner {
	if command != "" {
		r.command = command
	}
	return r
}

// WithWarnings adds degraded conditions detected before the run.
// They are reported alongside the run's own warnings.
func (r *Runner) WithWarnings(warnings ...string) *Runner {
	r.warnings = append(r.warnings, warnings...)
	return r
}

// Run executes every stage. Missing inputs and sink failures degrade the
// run; a missing benchmark or an output write failure aborts it. The
// returned Result is non-nil even on error and holds the stages completed.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	res := &Result{
		RunID:  uuid.NewString(),
		Report: &reporting.Report{Benchmark: r.cfg.Benchmark},
	}
	res.Warnings = append(res.Warnings, r.warnings...)
	log := r.log.With().Str("run_id", res.RunID).Logger()

	log.Info().
		Str("benchmark", r.cfg.Benchmark).
		Str("data_dir", r.cfg.Inputs.DataDir).
		Str("output_dir", r.cfg.Output.Dir).
		Int("sinks", len(r.sinks)).
		Msg("pipeline started")

	err := r.run(ctx, log, res)

	status := observability.StatusPass
	switch {
	case err != nil:
		status = observability.StatusFail
	case res.Degraded() || len(res.Warnings) > 0:
		status = observability.StatusDegraded
	}

	rows := 0
	if res.Frame != nil {
		rows = res.Frame.Len()
	}
	r.metrics.RecordPipelineRun(status, time.Since(started), rows, r.clock())
	if path := r.cfg.Metrics.Textfile; path != "" && r.metrics != nil {
		if werr := r.metrics.WriteTextfile(path); werr != nil {
			log.Warn().Err(werr).Str("path", path).Msg("failed to write metrics textfile")
		}
	}

	if err != nil {
		log.Error().Err(err).Msg("pipeline failed")
		return res, err
	}

	log.Info().
		Str("dataset_id", res.DatasetID).
		Int("rows", rows).
		Int("warnings", len(res.Warnings)).
		Str("status", status).
		Dur("duration", time.Since(started)).
		Msg("pipeline complete")
	return res, nil
}

func (r *Runner) run(ctx context.Context, log zerolog.Logger, res *Result) error {
	report := res.Report
	loader := NewLoader(r.cfg, log)

	// Stage 1: instrument series
	start := time.Now()
	batch, err := loader.LoadSeriesDir(ctx, r.cfg.Inputs.DataDir, r.cfg.Inputs.SeriesGlob)
	if err != nil {
		r.stage(log, res, StageLoadSeries, observability.StatusFail, err.Error(), start)
		return fmt.Errorf("load series: %w", err)
	}
	r.recordSeries(res, batch)
	status := observability.StatusPass
	if len(batch.Skipped) > 0 {
		status = observability.StatusDegraded
	}
	r.stage(log, res, StageLoadSeries, status,
		fmt.Sprintf("%d loaded, %d skipped", len(batch.Series), len(batch.Skipped)), start)

	// Stage 2: flow table
	start = time.Now()
	flow, status, detail, err := r.loadFlow(ctx, loader, res)
	if err != nil {
		r.stage(log, res, StageLoadFlow, observability.StatusFail, err.Error(), start)
		return err
	}
	res.Flow = flow
	r.stage(log, res, StageLoadFlow, status, detail, start)

	// Stage 3: merge onto the benchmark calendar
	start = time.Now()
	master, err := alignment.Merge(r.cfg.Benchmark, batch.Series, flow)
	if err != nil {
		r.stage(log, res, StageMerge, observability.StatusFail, err.Error(), start)
		if errors.Is(err, alignment.ErrBenchmarkMissing) {
			return fmt.Errorf("%w: %s", ErrBenchmarkMissing, r.cfg.Benchmark)
		}
		return fmt.Errorf("merge: %w", err)
	}
	res.Master = master
	r.stage(log, res, StageMerge, observability.StatusPass,
		fmt.Sprintf("%d rows, %d columns", master.Len(), len(master.Names())), start)

	if err := r.writeIntermediate(res, master, flow); err != nil {
		r.stage(log, res, StageWriteOutput, observability.StatusFail, err.Error(), start)
		return err
	}

	// Stage 4: returns, momentum, volatility
	start = time.Now()
	featureCfg := FeatureConfig(r.cfg)
	frame, err := features.Derive(master, featureCfg)
	if err != nil {
		r.stage(log, res, StageFeatures, observability.StatusFail, err.Error(), start)
		return fmt.Errorf("derive features: %w", err)
	}
	r.stage(log, res, StageFeatures, observability.StatusPass,
		fmt.Sprintf("%d columns", len(frame.Names())-len(master.Names())), start)

	// Stage 5: z-scores, composite score, regimes
	start = time.Now()
	riskCfg := RiskConfig(r.cfg)
	frame, fitted, err := risk.Apply(frame, riskCfg)
	if err != nil {
		r.stage(log, res, StageRisk, observability.StatusFail, err.Error(), start)
		return fmt.Errorf("risk score: %w", err)
	}
	res.Fitted = fitted
	status = r.recordNormalization(log, res, fitted)
	r.stage(log, res, StageRisk, status, fmt.Sprintf("vol n=%d, flow n=%d", fitted.Vol.N, fitted.Flow.N), start)

	// Stage 6: read-only diagnostics
	start = time.Now()
	diag, err := diagnostics.Run(frame, DiagnosticsConfig(r.cfg))
	if err != nil {
		res.warn("diagnostics: %v", err)
		r.stage(log, res, StageDiagnostics, observability.StatusDegraded, err.Error(), start)
	} else {
		res.Diagnostics = diag
		diag.Log(log)
		if r.cfg.Diagnostics.PersistCorrelations {
			if frame, err = frame.With(diag.CorrelationColumns()...); err != nil {
				r.stage(log, res, StageDiagnostics, observability.StatusFail, err.Error(), start)
				return fmt.Errorf("persist correlations: %w", err)
			}
		}
		r.stage(log, res, StageDiagnostics, observability.StatusPass,
			fmt.Sprintf("%d correlations, %d lead-lag", len(diag.Correlations), len(diag.LeadLag)), start)
	}
	res.Frame = frame
	report.Diagnostics = diag

	// Stage 7: data sufficiency
	start = time.Now()
	suff := NewSufficiencyChecker(featureCfg, riskCfg).Check(frame)
	res.Sufficiency = suff
	status = observability.StatusPass
	for _, c := range suff.Checks {
		report.Sufficiency = append(report.Sufficiency, reporting.SufficiencyRow{
			Name: c.Name, Threshold: c.Threshold, Actual: c.Actual, Pass: c.Pass,
		})
		if !c.Pass {
			res.warn("sufficiency check %s failed: %s (threshold %s)", c.Name, c.Actual, c.Threshold)
		}
	}
	report.IntegrityErrors = suff.Errors
	for _, e := range suff.Errors {
		res.warn("integrity: %s", e)
	}
	if !suff.AllPass {
		status = observability.StatusDegraded
	}
	r.stage(log, res, StageSufficiency, status, fmt.Sprintf("%d checks, %d integrity errors", len(suff.Checks), len(suff.Errors)), start)

	// Stage 8: final output file and dataset fingerprint
	start = time.Now()
	if err := r.writeFinal(res, frame); err != nil {
		r.stage(log, res, StageWriteOutput, observability.StatusFail, err.Error(), start)
		return err
	}
	r.stage(log, res, StageWriteOutput, observability.StatusPass,
		fmt.Sprintf("%d rows, dataset %s", frame.Len(), res.DatasetID), start)

	// Stage 9: database mirrors
	featureRows := storage.FeaturesFromFrame(res.DatasetID, frame)
	scoreRows := storage.RiskScoresFromFrame(res.DatasetID, r.cfg.Risk.FlowColumn, frame)
	for _, sink := range r.sinks {
		start = time.Now()
		name := stageSinkPrefix + sink.Name
		detail, err := r.mirror(ctx, log, sink, res.DatasetID, featureRows, scoreRows)
		if err == nil {
			r.stage(log, res, name, observability.StatusPass, detail, start)
			continue
		}
		if ctx.Err() != nil || r.cfg.Sinks.Required {
			r.stage(log, res, name, observability.StatusFail, err.Error(), start)
			return fmt.Errorf("sink %s: %w", sink.Name, err)
		}
		res.warn("sink %s: %v", sink.Name, err)
		r.stage(log, res, name, observability.StatusDegraded, err.Error(), start)
	}

	// Stage 10: markdown report
	if r.cfg.Diagnostics.ReportFile == "" {
		return nil
	}
	start = time.Now()
	r.fillReport(res)
	_, err = r.writeFile(res, r.cfg.Diagnostics.ReportFile, func(w io.Writer) error {
		_, err := io.WriteString(w, reporting.RenderMarkdown(report))
		return err
	})
	if err != nil {
		r.stage(log, res, StageWriteReport, observability.StatusFail, err.Error(), start)
		return err
	}
	r.stage(log, res, StageWriteReport, observability.StatusPass, r.cfg.Diagnostics.ReportFile, start)
	return nil
}

// stage records a stage outcome in the result, the metrics and the log.
func (r *Runner) stage(log zerolog.Logger, res *Result, name, status, detail string, start time.Time) {
	d := time.Since(start)
	res.Stages = append(res.Stages, StageResult{Name: name, Status: status, Detail: detail, Duration: d})
	r.metrics.RecordStage(name, status, d)

	ev := log.Info()
	switch status {
	case observability.StatusFail:
		ev = log.Error()
	case observability.StatusDegraded:
		ev = log.Warn()
	}
	ev.Str("stage", name).Str("status", status).Str("detail", detail).Dur("duration", d).Msg("stage finished")
}

func (r *Runner) recordSeries(res *Result, batch *normalization.SeriesBatch) {
	report := res.Report
	for _, s := range batch.Series {
		stats := batch.Stats[s.Name]
		report.Inputs = append(report.Inputs, inputRow(s.Name, stats))
		r.recordDropped(s.Name, stats)
	}
	for _, s := range batch.Skipped {
		report.Skipped = append(report.Skipped, reporting.SkippedRow{Name: s.Name, Reason: s.Reason.Error()})
		res.warn("instrument %s skipped: %v", s.Name, s.Reason)
	}
	for _, issue := range batch.Report.Issues {
		report.MappingIssues = append(report.MappingIssues, issue.String())
	}
	r.metrics.RecordInstruments(len(batch.Series), len(batch.Skipped))
}

func (r *Runner) recordDropped(source string, stats normalization.LoadStats) {
	r.metrics.RecordDropped(source, "invalid_date", stats.InvalidDates)
	r.metrics.RecordDropped(source, "duplicate_date", stats.DuplicateDates)
	r.metrics.RecordDropped(source, "invalid_value", stats.InvalidValues)
}

// loadFlow reads the flow file. Any failure other than cancellation
// degrades the run to a flow-less table.
func (r *Runner) loadFlow(ctx context.Context, loader *normalization.Runner, res *Result) (*domain.FlowTable, string, string, error) {
	name := r.cfg.Inputs.FlowFile
	if name == "" {
		res.warn("no flow file configured, %s z-score is 0", r.cfg.Risk.FlowColumn)
		return nil, observability.StatusDegraded, "not configured", nil
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.cfg.Inputs.DataDir, name)
	}

	fr, err := loader.LoadFlowFile(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", "", ctx.Err()
		}
		res.warn("flow file %s: %v", name, err)
		res.Report.Skipped = append(res.Report.Skipped, reporting.SkippedRow{Name: name, Reason: err.Error()})
		return nil, observability.StatusDegraded, err.Error(), nil
	}

	report := res.Report
	report.Inputs = append(report.Inputs, inputRow(name, fr.Stats))
	for _, issue := range fr.Report.Issues {
		report.MappingIssues = append(report.MappingIssues, issue.String())
	}
	r.recordDropped(name, fr.Stats)

	if fr.Table.Empty() {
		res.warn("flow file %s has no FII/DII columns", name)
		return fr.Table, observability.StatusDegraded, "no FII/DII columns", nil
	}
	for _, f := range fr.Table.Fields {
		report.FlowFields = append(report.FlowFields, f.String())
	}
	return fr.Table, observability.StatusPass,
		fmt.Sprintf("%d rows, %d fields", len(fr.Table.Records), len(fr.Table.Fields)), nil
}

// recordNormalization reports the fitted z-score constants and returns
// the risk stage status.
func (r *Runner) recordNormalization(log zerolog.Logger, res *Result, fitted risk.Fitted) string {
	status := observability.StatusPass
	for _, n := range []risk.Normalizer{fitted.Vol, fitted.Flow} {
		res.Report.Normalization = append(res.Report.Normalization, reporting.NormalizationRow{
			Column:     n.Column,
			Absent:     n.Absent,
			N:          n.N,
			Mean:       n.Mean,
			StdDev:     n.StdDev,
			Degenerate: n.Degenerate,
		})
		log.Info().
			Str("column", n.Column).
			Bool("absent", n.Absent).
			Int("n", n.N).
			Float64("mean", n.Mean).
			Float64("stddev", n.StdDev).
			Bool("degenerate", n.Degenerate).
			Msg("normalization fitted")

		switch {
		case n.Absent:
			res.warn("column %s absent, z-score is 0", n.Column)
			status = observability.StatusDegraded
		case !n.Defined():
			res.warn("column %s has %d observations, z-score undefined", n.Column, n.N)
			status = observability.StatusDegraded
		case n.Degenerate:
			res.warn("column %s has zero variance, minimum stddev used", n.Column)
		}
	}
	return status
}

func (r *Runner) writeIntermediate(res *Result, master *domain.Frame, flow *domain.FlowTable) error {
	if err := os.MkdirAll(r.cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if name := r.cfg.Output.CleanFlow; name != "" {
		if _, err := r.writeFile(res, name, func(w io.Writer) error {
			return reporting.WriteFlowCSV(w, flow)
		}); err != nil {
			return err
		}
	}
	if name := r.cfg.Output.MasterFile; name != "" {
		if _, err := r.writeFile(res, name, func(w io.Writer) error {
			return reporting.WriteFrameCSV(w, master)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) writeFinal(res *Result, frame *domain.Frame) error {
	content, err := r.writeFile(res, r.cfg.Output.FinalFile, func(w io.Writer) error {
		return reporting.WriteFrameCSV(w, frame)
	})
	if err != nil {
		return err
	}
	res.DatasetID = idhash.ComputeDatasetID(content)

	if name := r.cfg.Output.ParquetFile; name != "" {
		if _, err := r.writeFile(res, name, func(w io.Writer) error {
			return reporting.WriteFrameParquet(w, frame)
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeFile renders into memory and writes the file in one call, so a
// render error never leaves a truncated file behind.
func (r *Runner) writeFile(res *Result, name string, render func(io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	path := filepath.Join(r.cfg.Output.Dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	res.Outputs = append(res.Outputs, path)
	return buf.Bytes(), nil
}

func (r *Runner) fillReport(res *Result) {
	report := res.Report
	report.GeneratedAt = r.clock()
	report.DatasetID = res.DatasetID
	if res.Frame != nil {
		report.Rows = res.Frame.Len()
		if dates := res.Frame.Dates(); len(dates) > 0 {
			report.Start, report.End = dates[0], dates[len(dates)-1]
		}
	}
	for _, s := range res.Stages {
		report.Stages = append(report.Stages, reporting.StageRow{Name: s.Name, Pass: s.Pass(), Detail: s.Detail})
	}
	report.Warnings = res.Warnings
	report.Reproducibility = reporting.Reproducibility{
		GeneratorVersion: GeneratorVersion,
		Commit:           getGitCommitHash(),
		Command:          r.command,
	}
}

func inputRow(name string, stats normalization.LoadStats) reporting.InputRow {
	return reporting.InputRow{
		Name:           name,
		Rows:           stats.Rows,
		Kept:           stats.Kept,
		InvalidDates:   stats.InvalidDates,
		DuplicateDates: stats.DuplicateDates,
		InvalidValues:  stats.InvalidValues,
	}
}
