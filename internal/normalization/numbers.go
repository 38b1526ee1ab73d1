package normalization

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// numberReplacer removes thousands separators and whitespace and turns an
// accounting-style "(123)" into "-123".
var numberReplacer = strings.NewReplacer(
	",", "",
	"(", "-",
	")", "",
	" ", "",
	"\t", "",
	"\u00a0", "",
)

// ParseDecimal parses a locale-formatted number.
// Empty cells, a bare "-" and anything unparseable report false.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	cleaned := numberReplacer.Replace(strings.TrimSpace(s))
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseNumber parses a locale-formatted number into a float64.
// Unparseable input yields NaN and false; it never fails.
func ParseNumber(s string) (float64, bool) {
	d, ok := ParseDecimal(s)
	if !ok {
		return math.NaN(), false
	}
	return d.InexactFloat64(), true
}

// isBlank reports whether a cell carries no value at all, as opposed to an
// unparseable one.
func isBlank(s string) bool {
	t := strings.TrimSpace(s)
	return t == "" || t == "-"
}
