package normalization

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/tabular"
)

func readCSV(t *testing.T, source, content string) *tabular.Table {
	t.Helper()
	table, err := tabular.ReadCSV(strings.NewReader(content), source)
	require.NoError(t, err)
	return table
}

func TestNormalizeFlow(t *testing.T) {
	table := readCSV(t, "flows.csv", `Date,FII Buy,FII Sell,DII Net
03-01-2021,"1,000.10",(200.05),50
01-01-2021,500,300,-
bad,1,1,1
03-01-2021,9,9,9
02/01/2021,x,100,(10)
`)

	flow, stats, report, err := NormalizeFlow(table, DefaultFlowOptions())
	require.NoError(t, err)
	assert.True(t, report.Empty())

	assert.Equal(t, []domain.FlowField{
		domain.FlowFIIBuy, domain.FlowFIISell, domain.FlowFIINet, domain.FlowDIINet,
	}, flow.Fields)

	assert.Equal(t, LoadStats{Rows: 5, Kept: 3, InvalidDates: 1, DuplicateDates: 1, InvalidValues: 1}, stats)
	require.Len(t, flow.Records, 3)

	jan1 := flow.Records[0]
	assert.True(t, jan1.Date.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 500.0, jan1.Values[domain.FlowFIIBuy])
	assert.Equal(t, 300.0, jan1.Values[domain.FlowFIISell])
	assert.Equal(t, 200.0, jan1.Values[domain.FlowFIINet])
	assert.True(t, math.IsNaN(jan1.Values[domain.FlowDIINet]))

	jan2 := flow.Records[1]
	assert.True(t, math.IsNaN(jan2.Values[domain.FlowFIIBuy]))
	assert.True(t, math.IsNaN(jan2.Values[domain.FlowFIINet]), "net needs both legs")
	assert.Equal(t, -10.0, jan2.Values[domain.FlowDIINet])

	// first occurrence of 3 Jan wins over the later duplicate
	jan3 := flow.Records[2]
	assert.Equal(t, 1000.10, jan3.Values[domain.FlowFIIBuy])
	assert.Equal(t, -200.05, jan3.Values[domain.FlowFIISell])
	assert.Equal(t, 1200.15, jan3.Values[domain.FlowFIINet])
	assert.Equal(t, 50.0, jan3.Values[domain.FlowDIINet])
}

func TestNormalizeFlow_NetFromSourceNotDerived(t *testing.T) {
	table := readCSV(t, "flows.csv", `Date,FII Buy,FII Sell,FII Net
01-01-2021,500,300,999
`)

	flow, _, _, err := NormalizeFlow(table, DefaultFlowOptions())
	require.NoError(t, err)
	require.Len(t, flow.Records, 1)

	assert.Equal(t, 999.0, flow.Records[0].Values[domain.FlowFIINet])
}

func TestNormalizeFlow_NetDerivationInvariant(t *testing.T) {
	table := readCSV(t, "flows.csv", `Date,FPI Purchase,FPI Sales,DII Buy,DII Sell
01-01-2021,"12,345.67","(1,000.01)",10,20
02-01-2021,0.1,0.2,1.5,0.5
`)

	flow, _, _, err := NormalizeFlow(table, DefaultFlowOptions())
	require.NoError(t, err)
	require.True(t, flow.Has(domain.FlowFIINet))
	require.True(t, flow.Has(domain.FlowDIINet))

	for _, rec := range flow.Records {
		assert.InDelta(t, rec.Values[domain.FlowFIIBuy]-rec.Values[domain.FlowFIISell], rec.Values[domain.FlowFIINet], 1e-9)
		assert.InDelta(t, rec.Values[domain.FlowDIIBuy]-rec.Values[domain.FlowDIISell], rec.Values[domain.FlowDIINet], 1e-9)
	}
	// decimal subtraction avoids 0.1 - 0.2 = -0.1000000000000000055...
	assert.Equal(t, -0.1, flow.Records[1].Values[domain.FlowFIINet])
}

func TestNormalizeFlow_NoFlowColumns(t *testing.T) {
	table := readCSV(t, "flows.csv", "Date,Volume\n01-01-2021,5\n")

	flow, _, _, err := NormalizeFlow(table, DefaultFlowOptions())
	require.NoError(t, err)
	assert.True(t, flow.Empty())
	assert.Empty(t, flow.Records)
}

func TestNormalizeFlow_NoDateColumn(t *testing.T) {
	table := readCSV(t, "flows.csv", "Day,FII Net\n1,5\n")

	_, _, report, err := NormalizeFlow(table, DefaultFlowOptions())
	require.ErrorIs(t, err, ErrNoDateColumn)
	assert.False(t, report.Empty())
}

func TestNormalizeFlow_ExplicitMapping(t *testing.T) {
	table := readCSV(t, "flows.csv", "Trade Dt,Foreign Net\n01-01-2021,42\n")

	opts := DefaultFlowOptions()
	opts.DateColumn = "Trade Dt"
	opts.Mapping = map[domain.FlowField]string{domain.FlowFIINet: "Foreign Net"}

	flow, _, report, err := NormalizeFlow(table, opts)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	assert.Equal(t, []domain.FlowField{domain.FlowFIINet}, flow.Fields)
	assert.Equal(t, 42.0, flow.Records[0].Values[domain.FlowFIINet])
}
