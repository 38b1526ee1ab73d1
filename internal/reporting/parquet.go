package reporting

import (
	"fmt"
	"io"
	"math"

	"github.com/parquet-go/parquet-go"

	"market-risk-lab/internal/domain"
)

// ParquetSchema builds a flat schema for frame: Date as a DATE column,
// numeric columns as optional doubles, categorical columns as optional strings.
// Parquet group fields are ordered by name, not frame order.
func ParquetSchema(frame *domain.Frame) *parquet.Schema {
	group := parquet.Group{
		domain.ColumnDate: parquet.Date(),
	}
	for _, c := range frame.Columns() {
		if c.Categorical() {
			group[c.Name] = parquet.Optional(parquet.String())
		} else {
			group[c.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		}
	}
	return parquet.NewSchema("master_market_data", group)
}

// WriteFrameParquet writes frame as a single parquet row group.
// NaN and empty labels are written as nulls.
func WriteFrameParquet(w io.Writer, frame *domain.Frame) error {
	schema := ParquetSchema(frame)

	columnIndex := make(map[string]int)
	for i, f := range schema.Fields() {
		columnIndex[f.Name()] = i
	}

	cols := frame.Columns()
	dates := frame.Dates()
	rows := make([]parquet.Row, len(dates))
	for i, d := range dates {
		row := make(parquet.Row, len(columnIndex))
		days := int32(d.Unix() / 86400)
		dateIdx := columnIndex[domain.ColumnDate]
		row[dateIdx] = parquet.Int32Value(days).Level(0, 0, dateIdx)

		for _, c := range cols {
			idx := columnIndex[c.Name]
			if c.Categorical() {
				if c.Labels[i] == "" {
					row[idx] = parquet.NullValue().Level(0, 0, idx)
				} else {
					row[idx] = parquet.ByteArrayValue([]byte(c.Labels[i])).Level(0, 1, idx)
				}
				continue
			}
			if math.IsNaN(c.Values[i]) {
				row[idx] = parquet.NullValue().Level(0, 0, idx)
			} else {
				row[idx] = parquet.DoubleValue(c.Values[i]).Level(0, 1, idx)
			}
		}
		rows[i] = row
	}

	pw := parquet.NewWriter(w, schema)
	if _, err := pw.WriteRows(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
