// Package alignment joins per-instrument series and the flow table onto the
// benchmark's calendar.
package alignment

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"market-risk-lab/internal/domain"
)

// ErrBenchmarkMissing is returned when the designated benchmark series is
// absent or has no rows left after normalization.
var ErrBenchmarkMissing = errors.New("benchmark series missing")

// Merge builds the master table: one row per benchmark date, ascending,
// with the benchmark close first, every other series' close in name order,
// then the flow fields. Dates present only in non-benchmark inputs are
// dropped; benchmark dates absent from another input get NaN.
func Merge(benchmark string, series []*domain.Series, flow *domain.FlowTable) (*domain.Frame, error) {
	var bench *domain.Series
	others := make([]*domain.Series, 0, len(series))
	for _, s := range series {
		if s == nil {
			continue
		}
		if s.Name == benchmark {
			bench = s
			continue
		}
		others = append(others, s)
	}
	if bench == nil {
		return nil, fmt.Errorf("%s: %w", benchmark, ErrBenchmarkMissing)
	}
	if len(bench.Points) == 0 {
		return nil, fmt.Errorf("%s has no valid rows: %w", benchmark, ErrBenchmarkMissing)
	}

	sort.Slice(others, func(i, j int) bool { return others[i].Name < others[j].Name })

	dates := make([]time.Time, len(bench.Points))
	rowOf := make(map[time.Time]int, len(bench.Points))
	benchClose := make([]float64, len(bench.Points))
	for i, p := range bench.Points {
		dates[i] = p.Date
		rowOf[p.Date] = i
		benchClose[i] = p.Close
	}

	cols := make([]domain.Column, 0, 1+len(others)+len(domain.FlowFields))
	cols = append(cols, domain.Column{Name: bench.CloseColumn(), Values: benchClose})

	for _, s := range others {
		values := domain.NaNs(len(dates))
		for _, p := range s.Points {
			if row, ok := rowOf[p.Date]; ok {
				values[row] = p.Close
			}
		}
		cols = append(cols, domain.Column{Name: s.CloseColumn(), Values: values})
	}

	if !flow.Empty() {
		for _, field := range flow.Fields {
			values := domain.NaNs(len(dates))
			for _, rec := range flow.Records {
				row, ok := rowOf[rec.Date]
				if !ok {
					continue
				}
				if v, ok := rec.Values[field]; ok {
					values[row] = v
				}
			}
			cols = append(cols, domain.Column{Name: field.String(), Values: values})
		}
	}

	frame, err := domain.NewFrame(dates).With(cols...)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return frame, nil
}
