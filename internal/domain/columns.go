package domain

import (
	"strconv"
	"strings"
)

// Column name suffixes shared with the visualization layer, which locates
// instrument and metric columns by substring.
const (
	SuffixClose    = "_Close"
	SuffixReturn   = "_Return"
	SuffixMomentum = "_30dRet"
	SuffixCorr     = "_Corr_30d"
)

// Fixed column names of the master table.
const (
	ColumnDate       = "Date"
	ColumnVolZ       = "vol_z"
	ColumnFlowZ      = "fii_z"
	ColumnRiskScore  = "Risk_Score_v2"
	ColumnRiskRegime = "Risk_Regime"
)

// DateLayout is the output format for the Date column.
const DateLayout = "2006-01-02"

// CloseColumn returns "<name>_Close".
func CloseColumn(name string) string { return name + SuffixClose }

// ReturnColumn returns "<name>_Return".
func ReturnColumn(name string) string { return name + SuffixReturn }

// MomentumColumn returns "<name>_30dRet".
func MomentumColumn(name string) string { return name + SuffixMomentum }

// CorrColumn returns "<name>_Corr_30d".
func CorrColumn(name string) string { return name + SuffixCorr }

// VolColumn returns "Vol_<window>d".
func VolColumn(window int) string {
	return "Vol_" + strconv.Itoa(window) + "d"
}

// InstrumentFromColumn strips suffix from column and reports whether it matched.
func InstrumentFromColumn(column, suffix string) (string, bool) {
	if !strings.HasSuffix(column, suffix) || len(column) == len(suffix) {
		return "", false
	}
	return strings.TrimSuffix(column, suffix), true
}
