package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-risk-lab/internal/domain"
)

func TestResolveSeries(t *testing.T) {
	tests := []struct {
		name      string
		header    []string
		mapping   SeriesMapping
		wantDate  string
		wantClose string
		wantKinds []IssueKind
	}{
		{
			name:      "exact names",
			header:    []string{"Date", "Open", "Close"},
			wantDate:  "Date",
			wantClose: "Close",
		},
		{
			name:      "adj close preferred over close",
			header:    []string{"Date", "Close", "Adj Close"},
			wantDate:  "Date",
			wantClose: "Adj Close",
		},
		{
			name:      "substring fallback",
			header:    []string{"Trade Date", "Closing Price"},
			wantDate:  "Trade Date",
			wantClose: "Closing Price",
		},
		{
			name:      "ambiguous close takes first",
			header:    []string{"Date", "Close Price", "Prev close"},
			wantDate:  "Date",
			wantClose: "Close Price",
			wantKinds: []IssueKind{IssueAmbiguous},
		},
		{
			name:      "explicit mapping",
			header:    []string{"Dt", "Last", "Close"},
			mapping:   SeriesMapping{Date: "Dt", Close: "last"},
			wantDate:  "Dt",
			wantClose: "Last",
		},
		{
			name:      "broken mapping falls back",
			header:    []string{"Date", "Close"},
			mapping:   SeriesMapping{Close: "Settle"},
			wantDate:  "Date",
			wantClose: "Close",
			wantKinds: []IssueKind{IssueMappedNotFound},
		},
		{
			name:      "no close column",
			header:    []string{"Date", "Open", "High"},
			wantDate:  "Date",
			wantKinds: []IssueKind{IssueMissing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, report := ResolveSeries("NIFTY_IT", tt.header, tt.mapping)

			require.NotNil(t, cols.Date)
			assert.Equal(t, tt.wantDate, cols.Date.Name)
			if tt.wantClose == "" {
				assert.Nil(t, cols.Close)
			} else {
				require.NotNil(t, cols.Close)
				assert.Equal(t, tt.wantClose, cols.Close.Name)
			}

			var kinds []IssueKind
			for _, issue := range report.Issues {
				kinds = append(kinds, issue.Kind)
				assert.Equal(t, "NIFTY_IT", issue.Source)
				assert.NotEmpty(t, issue.String())
			}
			assert.Equal(t, tt.wantKinds, kinds)
		})
	}
}

func TestResolveFlow_Heuristic(t *testing.T) {
	header := []string{"Date", "FII Gross Purchase", "FII Gross Sales", "FII Net Purchase / Sales", "DII Buy Value", "DII Sell Value"}

	cols, report := ResolveFlow("flows.csv", header, "", nil)

	require.NotNil(t, cols.Date)
	assert.Equal(t, 1, cols.Fields[domain.FlowFIIBuy].Index)
	assert.Equal(t, 2, cols.Fields[domain.FlowFIISell].Index)
	assert.Equal(t, 3, cols.Fields[domain.FlowFIINet].Index)
	assert.Equal(t, 4, cols.Fields[domain.FlowDIIBuy].Index)
	assert.Equal(t, 5, cols.Fields[domain.FlowDIISell].Index)
	_, hasDIINet := cols.Fields[domain.FlowDIINet]
	assert.False(t, hasDIINet)
	assert.True(t, report.Empty(), "absent flow fields are not issues: %v", report.Issues)
}

func TestResolveFlow_Synonyms(t *testing.T) {
	header := []string{"date", "FPI Net", "dii net"}

	cols, report := ResolveFlow("flows.csv", header, "", nil)

	require.NotNil(t, cols.Date)
	assert.Equal(t, "FPI Net", cols.Fields[domain.FlowFIINet].Name)
	assert.Equal(t, "dii net", cols.Fields[domain.FlowDIINet].Name)
	assert.Len(t, cols.Fields, 2)
	assert.True(t, report.Empty())
}

func TestResolveFlow_ExplicitAndAmbiguous(t *testing.T) {
	header := []string{"Trade Dt", "FII Buy", "FII Buy (Cash)", "Foreign Net"}
	mapping := map[domain.FlowField]string{domain.FlowFIINet: "Foreign Net"}

	cols, report := ResolveFlow("flows.csv", header, "Trade Dt", mapping)

	require.NotNil(t, cols.Date)
	assert.Equal(t, OriginExplicit, cols.Date.Origin)
	assert.Equal(t, "Foreign Net", cols.Fields[domain.FlowFIINet].Name)
	assert.Equal(t, OriginExplicit, cols.Fields[domain.FlowFIINet].Origin)
	assert.Equal(t, "FII Buy", cols.Fields[domain.FlowFIIBuy].Name)

	ambiguous := report.Filter(IssueAmbiguous)
	require.Len(t, ambiguous, 1)
	assert.Equal(t, "FII_Buy", ambiguous[0].Field)
	assert.Equal(t, []string{"FII Buy", "FII Buy (Cash)"}, ambiguous[0].Candidates)
}

func TestResolveFlow_NoFlowColumns(t *testing.T) {
	cols, report := ResolveFlow("flows.csv", []string{"Date", "Volume"}, "", nil)

	require.NotNil(t, cols.Date)
	assert.Empty(t, cols.Fields)
	assert.True(t, report.Empty())
}
