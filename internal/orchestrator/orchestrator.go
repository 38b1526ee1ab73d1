// Package orchestrator coordinates one end-to-end run: open the configured
// sinks, run the pipeline, write metrics, close everything.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"market-risk-lab/internal/config"
	"market-risk-lab/internal/logger"
	"market-risk-lab/internal/observability"
	"market-risk-lab/internal/pipeline"
	"market-risk-lab/internal/storage"
)

// Orchestrator coordinates the end-to-end run.
// Flow: open sinks → pipeline stages → close sinks
type Orchestrator struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *observability.Metrics
	sinks   []storage.Sink
	clock   func() time.Time
	command string
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Config *config.Config
	Logger zerolog.Logger

	// Optional
	Metrics *observability.Metrics // nil disables metrics
	Sinks   []storage.Sink         // opened by the caller, in addition to configured sinks
	Clock   func() time.Time       // report timestamp
	Command string                 // command line recorded in the report
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:     opts.Config,
		log:     logger.Component(opts.Logger, "orchestrator"),
		metrics: opts.Metrics,
		sinks:   opts.Sinks,
		clock:   opts.Clock,
		command: opts.Command,
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	Pipeline   *pipeline.Result
	Sinks      []string // sinks the dataset was mirrored to or verified in
	SinkErrors []string // sinks that could not be opened
}

// Run executes the full run.
// Phases:
//  1. Open configured sinks (failures degrade the run unless sinks.required)
//  2. Run the pipeline
//  3. Close sinks
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	// Phase 1: sinks
	opened, openErrs := OpenSinks(ctx, o.cfg.Sinks, o.log)
	defer CloseSinks(opened, o.log)

	for _, err := range openErrs {
		result.SinkErrors = append(result.SinkErrors, err.Error())
	}
	if len(openErrs) > 0 && o.cfg.Sinks.Required {
		return result, fmt.Errorf("open sinks: %w", errors.Join(openErrs...))
	}

	sinks := append(append([]storage.Sink{}, o.sinks...), opened...)
	for _, s := range sinks {
		result.Sinks = append(result.Sinks, s.Name)
	}
	o.log.Info().Strs("sinks", result.Sinks).Int("unavailable", len(openErrs)).Msg("sinks ready")

	// Phase 2: pipeline
	runner := pipeline.NewRunner(o.cfg, o.log).
		WithSinks(sinks...).
		WithMetrics(o.metrics).
		WithCommand(o.command).
		WithWarnings(result.SinkErrors...)
	if o.clock != nil {
		runner = runner.WithClock(o.clock)
	}

	res, err := runner.Run(ctx)
	result.Pipeline = res
	if err != nil {
		return result, err
	}

	return result, nil
}
