package diagnostics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-risk-lab/internal/domain"
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	return out
}

func TestMaxDrawdown(t *testing.T) {
	d := dates(4)

	dd := MaxDrawdown(d, []float64{100, 120, 90, 110})

	assert.InDelta(t, -0.25, dd.Value, 1e-12)
	assert.Equal(t, 2, dd.Index)
	assert.True(t, dd.Date.Equal(d[2]))
	assert.True(t, dd.PeakDate.Equal(d[1]))
}

func TestMaxDrawdown_SkipsMissing(t *testing.T) {
	d := dates(5)

	dd := MaxDrawdown(d, []float64{math.NaN(), 100, math.NaN(), 80, 120})

	assert.InDelta(t, -0.20, dd.Value, 1e-12)
	assert.Equal(t, 3, dd.Index)
}

func TestMaxDrawdown_Monotonic(t *testing.T) {
	dd := MaxDrawdown(dates(3), []float64{1, 2, 3})
	assert.Equal(t, 0.0, dd.Value)
	assert.Equal(t, 0, dd.Index)

	empty := MaxDrawdown(nil, nil)
	assert.True(t, math.IsNaN(empty.Value))
	assert.Equal(t, -1, empty.Index)
}

func TestComputeLeadLag(t *testing.T) {
	n := 60
	flow := make([]float64, n)
	ret := make([]float64, n)
	for i := range flow {
		flow[i] = math.Sin(float64(i)*0.9) + 0.3*math.Cos(float64(i)*2.3)
	}
	// returns follow flow two rows later
	for i := range ret {
		if i < 2 {
			ret[i] = math.NaN()
			continue
		}
		ret[i] = 0.01 * flow[i-2]
	}

	ll := ComputeLeadLag("NIFTY_BANK", flow, ret, 5)

	require.Len(t, ll.Lags, 11)
	assert.Equal(t, -5, ll.Lags[0].Lag)
	assert.Equal(t, 5, ll.Lags[10].Lag)
	assert.Equal(t, 2, ll.Peak.Lag)
	assert.InDelta(t, 1.0, ll.Peak.Correlation, 1e-9)
}

func TestCorrelations(t *testing.T) {
	a := []float64{1, 2, 3, 4, math.NaN()}
	b := []float64{2, 4, 6, 8, 100}
	c := []float64{4, 3, 2, 1, 0}

	m := Correlations([]string{"A", "B", "C"}, [][]float64{a, b, c})

	assert.InDelta(t, 1.0, m.At("A", "A"), 1e-12)
	assert.InDelta(t, 1.0, m.At("A", "B"), 1e-12, "row 5 dropped pairwise")
	assert.InDelta(t, -1.0, m.At("A", "C"), 1e-12)
	assert.Equal(t, m.At("B", "C"), m.At("C", "B"))
	assert.True(t, math.IsNaN(m.At("A", "Z")))
}

func TestRankMomentum(t *testing.T) {
	m := RankMomentum(dates(1)[0],
		[]string{"NIFTY_50", "NIFTY_IT", "NIFTY_BANK", "NIFTY_AUTO"},
		[]float64{0.02, 0.05, math.NaN(), -0.01},
		0.02)

	var order []string
	for _, e := range m.Entries {
		order = append(order, e.Instrument)
	}
	assert.Equal(t, []string{"NIFTY_IT", "NIFTY_50", "NIFTY_AUTO", "NIFTY_BANK"}, order)
	assert.InDelta(t, 0.03, m.Entries[0].Excess, 1e-12)
}

func TestSummarizeRegimes(t *testing.T) {
	d := dates(5)
	scores := []float64{math.NaN(), 30, 50, 70, 55}
	regimes := []string{"", "Low", "Medium", "High", "Medium"}

	s := SummarizeRegimes(d, scores, regimes)

	assert.Equal(t, 1, s.Undefined)
	assert.Equal(t, 1, s.Counts[domain.RegimeLow])
	assert.Equal(t, 2, s.Counts[domain.RegimeMedium])
	assert.Equal(t, 1, s.Counts[domain.RegimeHigh])
	assert.Equal(t, domain.RegimeMedium, s.LatestRegime)
	assert.Equal(t, 55.0, s.LatestScore)
	assert.True(t, s.LatestDate.Equal(d[4]))
	assert.InDelta(t, 52.5, s.ScoreMedian, 1e-12)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	assert.Equal(t, 30.0, percentile(sorted, 0.5))
	assert.InDelta(t, 14.0, percentile(sorted, 0.1), 1e-12)
	assert.Equal(t, 50.0, percentile(sorted, 1.0))
	assert.True(t, math.IsNaN(percentile(nil, 0.5)))
}

func TestRun(t *testing.T) {
	n := 80
	d := dates(n)
	bench := make([]float64, n)
	it := make([]float64, n)
	benchMom := make([]float64, n)
	itMom := make([]float64, n)
	fii := make([]float64, n)
	closes := make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		r := 0.01 * math.Sin(float64(i)*1.3)
		bench[i] = r
		it[i] = 1.5*r + 0.0002*math.Cos(float64(i)*0.7)
		price *= 1 + r
		closes[i] = price
		benchMom[i] = 0.01
		itMom[i] = 0.04
		fii[i] = float64(i % 7)
	}
	bench[0], it[0] = math.NaN(), math.NaN()

	frame, err := domain.NewFrame(d).With(
		domain.Column{Name: "NIFTY_50_Close", Values: closes},
		domain.Column{Name: "FII_Net", Values: fii},
		domain.Column{Name: "NIFTY_50_Return", Values: bench},
		domain.Column{Name: "NIFTY_50_30dRet", Values: benchMom},
		domain.Column{Name: "NIFTY_IT_Return", Values: it},
		domain.Column{Name: "NIFTY_IT_30dRet", Values: itMom},
	)
	require.NoError(t, err)

	res, err := Run(frame, DefaultConfig("NIFTY_50"))
	require.NoError(t, err)

	assert.Equal(t, n, res.Rows)
	require.Len(t, res.Correlations, 1)
	assert.Equal(t, "NIFTY_IT_Corr_30d", res.Correlations[0].Column)
	assert.Equal(t, n-30, res.Correlations[0].Defined)
	assert.Greater(t, res.Correlations[0].Latest, 0.9)

	require.Len(t, res.Betas, 1)
	assert.InDelta(t, 1.5, res.Betas[0].Latest, 0.1)

	assert.Len(t, res.LeadLag, 2)
	assert.Equal(t, []string{"NIFTY_50", "NIFTY_IT"}, res.Matrix.Columns)

	require.Len(t, res.Momentum.Entries, 2)
	assert.Equal(t, "NIFTY_IT", res.Momentum.Entries[0].Instrument)
	assert.True(t, res.Momentum.AsOf.Equal(d[n-1]))

	assert.LessOrEqual(t, res.Drawdown.Value, 0.0)

	cols := res.CorrelationColumns()
	require.Len(t, cols, 1)
	assert.Len(t, cols[0].Values, n)

	// no score columns yet
	assert.Empty(t, res.Regimes.Counts)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig("NIFTY_50")
	cfg.CorrWindow = 1
	_, err := Run(domain.NewFrame(nil), cfg)
	assert.Error(t, err)
}
