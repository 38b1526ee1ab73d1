package normalization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"(1,234.50)", -1234.50, true},
		{"1,000", 1000, true},
		{" 12.5 ", 12.5, true},
		{"-3,000", -3000, true},
		{"1 234", 1234, true},
		{"0", 0, true},
		{"abc", math.NaN(), false},
		{"", math.NaN(), false},
		{"-", math.NaN(), false},
		{"12..5", math.NaN(), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			} else {
				assert.True(t, math.IsNaN(got), "unparseable input must yield NaN, got %v", got)
			}
		})
	}
}

func TestParseDecimal_Exact(t *testing.T) {
	buy, ok := ParseDecimal("1,000.10")
	assert.True(t, ok)
	sell, ok := ParseDecimal("(200.05)")
	assert.True(t, ok)

	assert.Equal(t, "1200.15", buy.Sub(sell).String())
}
