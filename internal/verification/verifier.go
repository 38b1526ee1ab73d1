// Package verification checks that a dataset mirrored into a sink matches
// the rows recomputed from the output file.
package verification

import (
	"math"

	"market-risk-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and recomputed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // recomputed value
	Actual   interface{} // stored value
}

// CompareFeatures compares a stored instrument feature row with the
// recomputed one. Uses FloatTolerance for float64 comparisons.
func CompareFeatures(stored, computed *domain.InstrumentFeature) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Instrument != computed.Instrument {
		divergences = append(divergences, FieldDivergence{
			Field:    "Instrument",
			Expected: computed.Instrument,
			Actual:   stored.Instrument,
		})
	}

	if !stored.Date.Equal(computed.Date) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Date",
			Expected: computed.Date.Format(domain.DateLayout),
			Actual:   stored.Date.Format(domain.DateLayout),
		})
	}

	divergences = appendFloat(divergences, "Close", stored.Close, computed.Close)
	divergences = appendFloat(divergences, "Return", stored.Return, computed.Return)
	divergences = appendFloat(divergences, "Return30d", stored.Return30d, computed.Return30d)

	return divergences
}

// CompareRiskScores compares a stored risk score row with the recomputed one.
func CompareRiskScores(stored, computed *domain.RiskScoreRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if !stored.Date.Equal(computed.Date) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Date",
			Expected: computed.Date.Format(domain.DateLayout),
			Actual:   stored.Date.Format(domain.DateLayout),
		})
	}

	divergences = appendFloat(divergences, "Vol7d", stored.Vol7d, computed.Vol7d)
	divergences = appendFloat(divergences, "Vol30d", stored.Vol30d, computed.Vol30d)
	divergences = appendFloat(divergences, "Vol90d", stored.Vol90d, computed.Vol90d)
	divergences = appendFloat(divergences, "FIINet", stored.FIINet, computed.FIINet)
	divergences = appendFloat(divergences, "VolZ", stored.VolZ, computed.VolZ)
	divergences = appendFloat(divergences, "FlowZ", stored.FlowZ, computed.FlowZ)
	divergences = appendFloat(divergences, "Score", stored.Score, computed.Score)

	if stored.Regime != computed.Regime {
		divergences = append(divergences, FieldDivergence{
			Field:    "Regime",
			Expected: computed.Regime.String(),
			Actual:   stored.Regime.String(),
		})
	}

	return divergences
}

func appendFloat(divergences []FieldDivergence, field string, stored, computed *float64) []FieldDivergence {
	if floatPtrEquals(stored, computed) {
		return divergences
	}
	return append(divergences, FieldDivergence{
		Field:    field,
		Expected: ptrValue(computed),
		Actual:   ptrValue(stored),
	})
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}

func ptrValue(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// featureKey identifies an instrument feature row within a dataset.
func featureKey(f *domain.InstrumentFeature) string {
	return f.Instrument + "@" + f.Date.Format(domain.DateLayout)
}

// scoreKey identifies a risk score row within a dataset.
func scoreKey(r *domain.RiskScoreRecord) string {
	return r.Date.Format(domain.DateLayout)
}
