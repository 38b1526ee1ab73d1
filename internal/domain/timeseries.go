package domain

import (
	"strings"
	"time"
)

// SeriesPoint is one row of an instrument's close-price series.
type SeriesPoint struct {
	Date  time.Time // calendar date, UTC midnight
	Close float64   // NaN when the source cell was not numeric
}

// Series is the canonical {Date, <Name>_Close} table for one instrument.
// Points are sorted by Date ascending with no duplicate dates.
type Series struct {
	Name   string // instrument name, e.g. NIFTY_50
	Points []SeriesPoint
}

// CloseColumn returns the master-table column name for this series.
func (s *Series) CloseColumn() string {
	return CloseColumn(s.Name)
}

// FlowField identifies a canonical capital-flow column.
type FlowField string

const (
	FlowFIIBuy  FlowField = "FII_Buy"
	FlowFIISell FlowField = "FII_Sell"
	FlowFIINet  FlowField = "FII_Net"
	FlowDIIBuy  FlowField = "DII_Buy"
	FlowDIISell FlowField = "DII_Sell"
	FlowDIINet  FlowField = "DII_Net"
)

// FlowFields lists the canonical flow columns in output order.
var FlowFields = []FlowField{
	FlowFIIBuy, FlowFIISell, FlowFIINet,
	FlowDIIBuy, FlowDIISell, FlowDIINet,
}

// String returns the column name.
func (f FlowField) String() string {
	return string(f)
}

// IsValid checks if the field is one of the canonical flow columns.
func (f FlowField) IsValid() bool {
	for _, c := range FlowFields {
		if c == f {
			return true
		}
	}
	return false
}

// ParseFlowField resolves a canonical flow column name case-insensitively.
func ParseFlowField(s string) (FlowField, bool) {
	for _, c := range FlowFields {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, true
		}
	}
	return "", false
}

// FlowRecord is one trading day of institutional flow.
// Values holds only the fields present in the source table; NaN marks an unparseable cell.
type FlowRecord struct {
	Date   time.Time
	Values map[FlowField]float64
}

// FlowTable is the canonical flow table.
// Fields lists the columns present, in FlowFields order. An empty Fields
// means the source had no recognizable FII/DII columns.
type FlowTable struct {
	Fields  []FlowField
	Records []FlowRecord // sorted by Date ascending
}

// Has reports whether the table carries the given field.
func (t *FlowTable) Has(f FlowField) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Fields {
		if c == f {
			return true
		}
	}
	return false
}

// Empty reports whether the table contributes no flow columns.
func (t *FlowTable) Empty() bool {
	return t == nil || len(t.Fields) == 0
}
