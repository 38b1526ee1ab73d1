package normalization

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/schema"
	"market-risk-lab/internal/tabular"
)

// FlowOptions controls flow table parsing.
type FlowOptions struct {
	DateColumn string                      // explicit date column; empty = heuristic
	Mapping    map[domain.FlowField]string // explicit field columns; missing = heuristic
	DayFirst   bool
}

// DefaultFlowOptions returns day-first parsing with heuristic discovery.
func DefaultFlowOptions() FlowOptions {
	return FlowOptions{DayFirst: true}
}

// netDerivations pairs each Net field with the Buy and Sell it can be derived from.
var netDerivations = []struct {
	net, buy, sell domain.FlowField
}{
	{domain.FlowFIINet, domain.FlowFIIBuy, domain.FlowFIISell},
	{domain.FlowDIINet, domain.FlowDIIBuy, domain.FlowDIISell},
}

// NormalizeFlow converts a raw flow table into the canonical flow schema.
//
// A table without any FII/DII column yields an empty FlowTable, not an error.
// Net is derived as Buy - Sell, in exact decimal arithmetic, only when the
// source has no Net column and carries both Buy and Sell.
func NormalizeFlow(table *tabular.Table, opts FlowOptions) (*domain.FlowTable, LoadStats, schema.Report, error) {
	var stats LoadStats

	cols, report := schema.ResolveFlow(table.Source, table.Header, opts.DateColumn, opts.Mapping)
	if cols.Date == nil {
		return nil, stats, report, fmt.Errorf("%s: %w", table.Source, ErrNoDateColumn)
	}

	var derive []domain.FlowField
	present := make(map[domain.FlowField]bool, len(domain.FlowFields))
	for f := range cols.Fields {
		present[f] = true
	}
	for _, d := range netDerivations {
		if !present[d.net] && present[d.buy] && present[d.sell] {
			derive = append(derive, d.net)
			present[d.net] = true
		}
	}

	out := &domain.FlowTable{}
	for _, f := range domain.FlowFields {
		if present[f] {
			out.Fields = append(out.Fields, f)
		}
	}
	if len(out.Fields) == 0 {
		return out, stats, report, nil
	}

	rows := make([]dated[map[domain.FlowField]float64], 0, len(table.Rows))
	for i, row := range table.Rows {
		stats.Rows++

		date, ok := ParseDate(row[cols.Date.Index], opts.DayFirst)
		if !ok {
			stats.InvalidDates++
			continue
		}

		exact := make(map[domain.FlowField]decimal.Decimal, len(cols.Fields))
		values := make(map[domain.FlowField]float64, len(out.Fields))
		for f, m := range cols.Fields {
			cell := row[m.Index]
			d, ok := ParseDecimal(cell)
			if !ok {
				if !isBlank(cell) {
					stats.InvalidValues++
				}
				values[f] = math.NaN()
				continue
			}
			exact[f] = d
			values[f] = d.InexactFloat64()
		}

		for _, d := range netDerivations {
			if !containsField(derive, d.net) {
				continue
			}
			buy, okBuy := exact[d.buy]
			sell, okSell := exact[d.sell]
			if okBuy && okSell {
				values[d.net] = buy.Sub(sell).InexactFloat64()
			} else {
				values[d.net] = math.NaN()
			}
		}

		rows = append(rows, dated[map[domain.FlowField]float64]{date: date, row: i, val: values})
	}

	kept, dups := sortAndDedupe(rows)
	stats.DuplicateDates = dups
	stats.Kept = len(kept)

	out.Records = make([]domain.FlowRecord, len(kept))
	for i, r := range kept {
		out.Records[i] = domain.FlowRecord{Date: r.date, Values: r.val}
	}

	return out, stats, report, nil
}

func containsField(fields []domain.FlowField, f domain.FlowField) bool {
	for _, c := range fields {
		if c == f {
			return true
		}
	}
	return false
}
