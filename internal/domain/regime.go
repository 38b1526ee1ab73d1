package domain

// Regime is the categorical risk bucket derived from the composite score.
type Regime string

const (
	RegimeLow    Regime = "Low"
	RegimeMedium Regime = "Medium"
	RegimeHigh   Regime = "High"
	RegimeNone   Regime = "" // score undefined
)

// Regimes lists the defined regimes in ascending risk order.
var Regimes = []Regime{RegimeLow, RegimeMedium, RegimeHigh}

// String returns the string representation of Regime.
func (r Regime) String() string {
	return string(r)
}

// IsValid checks if the regime is a defined bucket.
func (r Regime) IsValid() bool {
	return r == RegimeLow || r == RegimeMedium || r == RegimeHigh
}
