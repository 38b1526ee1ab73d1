// Package observability provides Prometheus metrics for batch pipeline runs.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage outcome labels.
const (
	StatusPass     = "pass"
	StatusFail     = "fail"
	StatusDegraded = "degraded"
)

// Metrics holds all Prometheus metrics for one pipeline process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  prometheus.Histogram
	StageDuration     *prometheus.HistogramVec
	StageOutcomes     *prometheus.CounterVec

	// Input metrics
	InstrumentsLoaded  prometheus.Counter
	InstrumentsSkipped prometheus.Counter
	RowsDropped        *prometheus.CounterVec

	// Output metrics
	OutputRows    prometheus.Gauge
	SinkRowsTotal *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_risk_lab"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Pipeline metrics
		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		StageOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_outcomes_total",
			Help:      "Total number of stage outcomes by stage and status",
		}, []string{"stage", "status"}),

		// Input metrics
		InstrumentsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inputs",
			Name:      "instruments_loaded_total",
			Help:      "Total number of instrument series loaded",
		}),
		InstrumentsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inputs",
			Name:      "instruments_skipped_total",
			Help:      "Total number of instrument files skipped",
		}),
		RowsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inputs",
			Name:      "rows_dropped_total",
			Help:      "Total number of input rows dropped by source and reason",
		}, []string{"source", "reason"}),

		// Output metrics
		OutputRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "rows",
			Help:      "Number of rows in the last master table",
		}),
		SinkRowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sinks",
			Name:      "rows_written_total",
			Help:      "Total number of rows written per sink and table",
		}, []string{"sink", "table"}),

		// Health metrics
		LastSuccessfulPipeline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordStage records a stage outcome and its duration.
func (m *Metrics) RecordStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	m.StageOutcomes.WithLabelValues(stage, status).Inc()
}

// RecordInstruments records loaded and skipped instrument counts.
func (m *Metrics) RecordInstruments(loaded, skipped int) {
	if m == nil {
		return
	}
	m.InstrumentsLoaded.Add(float64(loaded))
	m.InstrumentsSkipped.Add(float64(skipped))
}

// RecordDropped records dropped input rows.
func (m *Metrics) RecordDropped(source, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsDropped.WithLabelValues(source, reason).Add(float64(n))
}

// RecordSinkRows records rows written to a sink table.
func (m *Metrics) RecordSinkRows(sink, table string, n int) {
	if m == nil {
		return
	}
	m.SinkRowsTotal.WithLabelValues(sink, table).Add(float64(n))
}

// RecordPipelineRun records a finished pipeline run.
func (m *Metrics) RecordPipelineRun(status string, d time.Duration, rows int, finished time.Time) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(d.Seconds())
	if status == StatusPass || status == StatusDegraded {
		m.OutputRows.Set(float64(rows))
		m.LastSuccessfulPipeline.Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes all metrics in the text exposition format for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
