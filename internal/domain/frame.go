package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Frame errors.
var (
	// ErrColumnExists is returned when a stage tries to add a column that is already present.
	ErrColumnExists = errors.New("column already exists")

	// ErrLengthMismatch is returned when a column's length differs from the frame's row count.
	ErrLengthMismatch = errors.New("column length does not match frame rows")
)

// Column is one named column of a Frame.
// Numeric columns use Values (NaN = missing); categorical columns use Labels ("" = missing).
type Column struct {
	Name   string
	Values []float64
	Labels []string
}

// Categorical reports whether the column holds labels instead of numbers.
func (c Column) Categorical() bool {
	return c.Labels != nil
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	if c.Categorical() {
		return len(c.Labels)
	}
	return len(c.Values)
}

// Frame is the date-indexed master table.
//
// A Frame is never mutated once built: With returns a new Frame sharing the
// existing column slices and appending the new ones. Callers must not write
// into slices obtained from Float or Labels.
type Frame struct {
	dates   []time.Time
	columns []Column
	index   map[string]int
}

// NewFrame creates a frame with the given date index and no columns.
func NewFrame(dates []time.Time) *Frame {
	return &Frame{
		dates: dates,
		index: make(map[string]int),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.dates)
}

// Dates returns the date index.
func (f *Frame) Dates() []time.Time {
	return f.dates
}

// Names returns column names in insertion order, excluding Date.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns all columns in insertion order.
func (f *Frame) Columns() []Column {
	return f.columns
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a column by name.
func (f *Frame) Column(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, false
	}
	return f.columns[i], true
}

// Float returns a numeric column's values.
func (f *Frame) Float(name string) ([]float64, bool) {
	c, ok := f.Column(name)
	if !ok || c.Categorical() {
		return nil, false
	}
	return c.Values, true
}

// Labels returns a categorical column's labels.
func (f *Frame) Labels(name string) ([]string, bool) {
	c, ok := f.Column(name)
	if !ok || !c.Categorical() {
		return nil, false
	}
	return c.Labels, true
}

// NamesWithSuffix returns column names ending in suffix, in insertion order.
func (f *Frame) NamesWithSuffix(suffix string) []string {
	var out []string
	for _, c := range f.columns {
		if _, ok := InstrumentFromColumn(c.Name, suffix); ok {
			out = append(out, c.Name)
		}
	}
	return out
}

// With returns a new frame with cols appended.
// Existing columns are never replaced.
func (f *Frame) With(cols ...Column) (*Frame, error) {
	next := &Frame{
		dates:   f.dates,
		columns: make([]Column, len(f.columns), len(f.columns)+len(cols)),
		index:   make(map[string]int, len(f.columns)+len(cols)),
	}
	copy(next.columns, f.columns)
	for k, v := range f.index {
		next.index[k] = v
	}

	for _, c := range cols {
		if c.Name == "" || c.Name == ColumnDate {
			return nil, fmt.Errorf("invalid column name %q", c.Name)
		}
		if _, exists := next.index[c.Name]; exists {
			return nil, fmt.Errorf("%s: %w", c.Name, ErrColumnExists)
		}
		if c.Len() != len(f.dates) {
			return nil, fmt.Errorf("%s has %d rows, frame has %d: %w", c.Name, c.Len(), len(f.dates), ErrLengthMismatch)
		}
		next.index[c.Name] = len(next.columns)
		next.columns = append(next.columns, c)
	}
	return next, nil
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
