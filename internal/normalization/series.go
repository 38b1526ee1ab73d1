package normalization

import (
	"errors"
	"fmt"
	"math"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/schema"
	"market-risk-lab/internal/tabular"
)

var (
	// ErrNoCloseColumn is returned when a price table has no recognizable close column.
	ErrNoCloseColumn = errors.New("no close column")
	// ErrNoDateColumn is returned when a table has no recognizable date column.
	ErrNoDateColumn = errors.New("no date column")
)

// LoadStats counts what a loader kept and dropped.
type LoadStats struct {
	Rows           int // data rows read
	Kept           int // rows in the canonical output
	InvalidDates   int // rows dropped for an unparseable date
	DuplicateDates int // rows dropped as later occurrences of a date
	InvalidValues  int // non-blank cells that did not parse as numbers
}

// Dropped returns the number of source rows not in the output.
func (s LoadStats) Dropped() int {
	return s.InvalidDates + s.DuplicateDates
}

// SeriesOptions controls price table parsing.
type SeriesOptions struct {
	Mapping  schema.SeriesMapping
	DayFirst bool // interpret 03/04/2020 as 3 April
}

// LoadSeries converts a raw price table into the canonical {Date, <name>_Close} series.
// Close cells that are not numeric, or negative, become NaN. Rows with an
// unparseable date are dropped, as are later duplicates of a date.
func LoadSeries(table *tabular.Table, name string, opts SeriesOptions) (*domain.Series, LoadStats, schema.Report, error) {
	var stats LoadStats

	cols, report := schema.ResolveSeries(name, table.Header, opts.Mapping)
	if cols.Date == nil {
		return nil, stats, report, fmt.Errorf("%s: %w", name, ErrNoDateColumn)
	}
	if cols.Close == nil {
		return nil, stats, report, fmt.Errorf("%s: %w", name, ErrNoCloseColumn)
	}

	rows := make([]dated[float64], 0, len(table.Rows))
	for i, row := range table.Rows {
		stats.Rows++

		date, ok := ParseDate(row[cols.Date.Index], opts.DayFirst)
		if !ok {
			stats.InvalidDates++
			continue
		}

		cell := row[cols.Close.Index]
		price, ok := ParseNumber(cell)
		if !ok && !isBlank(cell) {
			stats.InvalidValues++
		}
		if ok && price < 0 {
			stats.InvalidValues++
			price = math.NaN()
		}

		rows = append(rows, dated[float64]{date: date, row: i, val: price})
	}

	kept, dups := sortAndDedupe(rows)
	stats.DuplicateDates = dups
	stats.Kept = len(kept)

	series := &domain.Series{
		Name:   name,
		Points: make([]domain.SeriesPoint, len(kept)),
	}
	for i, r := range kept {
		series.Points[i] = domain.SeriesPoint{Date: r.date, Close: r.val}
	}

	return series, stats, report, nil
}
