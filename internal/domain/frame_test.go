package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDates(n int) []time.Time {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

func TestFrame_WithDoesNotMutateParent(t *testing.T) {
	base := NewFrame(testDates(3))
	f1, err := base.With(Column{Name: "A_Close", Values: []float64{1, 2, 3}})
	require.NoError(t, err)

	f2, err := f1.With(Column{Name: "A_Return", Values: []float64{math.NaN(), 1, 0.5}})
	require.NoError(t, err)

	assert.Equal(t, []string{"A_Close"}, f1.Names())
	assert.Equal(t, []string{"A_Close", "A_Return"}, f2.Names())
	assert.False(t, f1.Has("A_Return"))
	assert.Equal(t, 0, len(base.Names()))
}

func TestFrame_WithRejectsDuplicateColumn(t *testing.T) {
	f, err := NewFrame(testDates(2)).With(Column{Name: "X", Values: []float64{1, 2}})
	require.NoError(t, err)

	_, err = f.With(Column{Name: "X", Values: []float64{3, 4}})
	assert.True(t, errors.Is(err, ErrColumnExists))
}

func TestFrame_WithRejectsLengthMismatch(t *testing.T) {
	_, err := NewFrame(testDates(2)).With(Column{Name: "X", Values: []float64{1}})
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestFrame_CategoricalColumns(t *testing.T) {
	f, err := NewFrame(testDates(2)).With(
		Column{Name: "Score", Values: []float64{10, 70}},
		Column{Name: ColumnRiskRegime, Labels: []string{"Low", "High"}},
	)
	require.NoError(t, err)

	labels, ok := f.Labels(ColumnRiskRegime)
	require.True(t, ok)
	assert.Equal(t, []string{"Low", "High"}, labels)

	_, ok = f.Float(ColumnRiskRegime)
	assert.False(t, ok, "categorical column must not be returned as numeric")
}

func TestFrame_NamesWithSuffix(t *testing.T) {
	f, err := NewFrame(testDates(1)).With(
		Column{Name: "NIFTY_50_Close", Values: []float64{1}},
		Column{Name: "NIFTY_BANK_Close", Values: []float64{1}},
		Column{Name: "NIFTY_50_Return", Values: []float64{1}},
		Column{Name: "_Close", Values: []float64{1}},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"NIFTY_50_Close", "NIFTY_BANK_Close"}, f.NamesWithSuffix(SuffixClose))
}

func TestVolColumn(t *testing.T) {
	assert.Equal(t, "Vol_7d", VolColumn(7))
	assert.Equal(t, "Vol_30d", VolColumn(30))
	assert.Equal(t, "Vol_90d", VolColumn(90))
}
