package diagnostics

import (
	"math"
	"sort"
	"time"
)

// MomentumEntry is one instrument's trailing return on the ranking date.
type MomentumEntry struct {
	Instrument string
	Return     float64 // <Name>_30dRet on AsOf
	Excess     float64 // Return minus the benchmark's Return
}

// Momentum ranks instruments by trailing return on one date.
type Momentum struct {
	AsOf    time.Time
	Entries []MomentumEntry // descending Return; undefined returns last
}

// RankMomentum orders instruments by their momentum values on asOf.
// names and values are parallel; benchmarkReturn may be NaN.
func RankMomentum(asOf time.Time, names []string, values []float64, benchmarkReturn float64) Momentum {
	m := Momentum{AsOf: asOf}
	for i, name := range names {
		m.Entries = append(m.Entries, MomentumEntry{
			Instrument: name,
			Return:     values[i],
			Excess:     values[i] - benchmarkReturn,
		})
	}
	sort.SliceStable(m.Entries, func(i, j int) bool {
		a, b := m.Entries[i].Return, m.Entries[j].Return
		if math.IsNaN(a) != math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if a != b {
			return a > b
		}
		return m.Entries[i].Instrument < m.Entries[j].Instrument
	})
	return m
}
