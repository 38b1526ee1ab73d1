package reporting

import (
	"time"

	"market-risk-lab/internal/diagnostics"
)

// Report represents the diagnostics report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	DatasetID   string
	Benchmark   string
	Rows        int
	Start       time.Time
	End         time.Time

	// Pipeline execution (empty when rendered from a stored dataset)
	Stages []StageRow

	// Inputs
	Inputs        []InputRow
	Skipped       []SkippedRow
	FlowFields    []string
	MappingIssues []string

	// Risk normalization constants
	Normalization []NormalizationRow

	// Data sufficiency checks on the scored table
	Sufficiency     []SufficiencyRow
	IntegrityErrors []string

	// Read-only analytics
	Diagnostics *diagnostics.Result

	// Degraded conditions collected during the run
	Warnings []string

	Reproducibility Reproducibility
}

// SufficiencyRow is one data sufficiency criterion.
type SufficiencyRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Reproducibility describes how to regenerate the dataset.
type Reproducibility struct {
	GeneratorVersion string
	Commit           string // git commit of the generator, "unknown" outside a checkout
	Command          string
}

// StageRow is one pipeline stage outcome.
type StageRow struct {
	Name   string
	Pass   bool
	Detail string
}

// InputRow summarizes one loaded input table.
type InputRow struct {
	Name           string
	Rows           int
	Kept           int
	InvalidDates   int
	DuplicateDates int
	InvalidValues  int
}

// SkippedRow is an input that contributed nothing.
type SkippedRow struct {
	Name   string
	Reason string
}

// NormalizationRow describes one fitted z-score.
type NormalizationRow struct {
	Column     string
	Absent     bool
	N          int
	Mean       float64
	StdDev     float64
	Degenerate bool // zero variance replaced by the minimum stddev
}
