package normalization

import (
	"github.com/rs/zerolog"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/logger"
	"market-risk-lab/internal/schema"
)

// SeriesMappingFunc returns the explicit column mapping for an instrument.
type SeriesMappingFunc func(instrument string) schema.SeriesMapping

// Runner discovers and loads input files into canonical tables.
type Runner struct {
	log            zerolog.Logger
	seriesMapping  SeriesMappingFunc
	seriesDayFirst bool
	flowOpts       FlowOptions
}

// NewRunner creates a new normalization runner with heuristic column discovery.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{
		log:           logger.Component(log, "normalization"),
		seriesMapping: func(string) schema.SeriesMapping { return schema.SeriesMapping{} },
		flowOpts:      DefaultFlowOptions(),
	}
}

// WithSeriesMapping sets the per-instrument explicit column mapping.
func (r *Runner) WithSeriesMapping(fn SeriesMappingFunc) *Runner {
	if fn != nil {
		r.seriesMapping = fn
	}
	return r
}

// WithSeriesDayFirst makes price tables parse ambiguous dates day-first.
func (r *Runner) WithSeriesDayFirst(dayFirst bool) *Runner {
	r.seriesDayFirst = dayFirst
	return r
}

// WithFlowMapping sets the explicit flow date column and field mapping.
func (r *Runner) WithFlowMapping(dateColumn string, mapping map[domain.FlowField]string) *Runner {
	r.flowOpts.DateColumn = dateColumn
	r.flowOpts.Mapping = mapping
	return r
}
