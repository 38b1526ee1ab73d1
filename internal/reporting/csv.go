package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"market-risk-lab/internal/domain"
)

// FormatFloat renders a value for tabular output.
// Missing values are empty cells; infinities keep their sign.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteFrameCSV writes frame as CSV: Date first, then columns in frame order.
// Output depends only on the frame contents.
func WriteFrameCSV(w io.Writer, frame *domain.Frame) error {
	cw := csv.NewWriter(w)

	cols := frame.Columns()
	header := make([]string, 0, len(cols)+1)
	header = append(header, domain.ColumnDate)
	for _, c := range cols {
		header = append(header, c.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for i, d := range frame.Dates() {
		record[0] = d.Format(domain.DateLayout)
		for j, c := range cols {
			if c.Categorical() {
				record[j+1] = c.Labels[i]
			} else {
				record[j+1] = FormatFloat(c.Values[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFlowCSV writes the cleaned flow table with the fields it carries.
func WriteFlowCSV(w io.Writer, flow *domain.FlowTable) error {
	cw := csv.NewWriter(w)

	var fields []domain.FlowField
	var records []domain.FlowRecord
	if flow != nil {
		fields, records = flow.Fields, flow.Records
	}

	header := make([]string, 0, len(fields)+1)
	header = append(header, domain.ColumnDate)
	for _, f := range fields {
		header = append(header, f.String())
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for i, r := range records {
		record[0] = r.Date.Format(domain.DateLayout)
		for j, f := range fields {
			v, ok := r.Values[f]
			if !ok {
				v = math.NaN()
			}
			record[j+1] = FormatFloat(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
