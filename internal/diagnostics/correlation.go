package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"market-risk-lab/internal/rolling"
)

// SeriesSummary condenses a rolling statistic for logs and reports.
type SeriesSummary struct {
	Instrument string
	Column     string    // output column name, e.g. NIFTY_IT_Corr_30d
	Values     []float64 // one per row, NaN where undefined
	Latest     float64   // last defined value
	Mean       float64   // mean of defined values
	Defined    int       // number of defined rows
}

func summarize(instrument, column string, values []float64) SeriesSummary {
	s := SeriesSummary{
		Instrument: instrument,
		Column:     column,
		Values:     values,
		Latest:     math.NaN(),
		Mean:       math.NaN(),
	}
	var defined []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			defined = append(defined, v)
		}
	}
	s.Defined = len(defined)
	if s.Defined > 0 {
		s.Latest = defined[len(defined)-1]
		s.Mean = stat.Mean(defined, nil)
	}
	return s
}

// CorrelationMatrix is the pairwise-complete Pearson correlation of return columns.
type CorrelationMatrix struct {
	Columns []string
	Values  [][]float64 // Values[i][j] = corr(Columns[i], Columns[j])
}

// At returns the correlation of two columns, or NaN when either is unknown.
func (m CorrelationMatrix) At(a, b string) float64 {
	i, j := -1, -1
	for k, c := range m.Columns {
		if c == a {
			i = k
		}
		if c == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.Values[i][j]
}

// Correlations computes the correlation matrix over the given columns.
// Each pair uses only rows where both are defined; fewer than two such rows yields NaN.
func Correlations(names []string, columns [][]float64) CorrelationMatrix {
	m := CorrelationMatrix{
		Columns: names,
		Values:  make([][]float64, len(names)),
	}
	for i := range names {
		m.Values[i] = make([]float64, len(names))
	}
	for i := range names {
		for j := i; j < len(names); j++ {
			c := pearson(columns[i], columns[j])
			m.Values[i][j] = c
			m.Values[j][i] = c
		}
	}
	return m
}

// pearson is the pairwise-complete Pearson correlation.
func pearson(x, y []float64) float64 {
	cx, cy := rolling.PairwiseComplete(x, y)
	if len(cx) < 2 {
		return math.NaN()
	}
	return stat.Correlation(cx, cy, nil)
}
