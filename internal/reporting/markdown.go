package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"market-risk-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Market Risk Diagnostics\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Dataset | %s |\n", orNA(r.DatasetID)))
	sb.WriteString(fmt.Sprintf("| Benchmark | %s |\n", r.Benchmark))
	sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.Rows))
	sb.WriteString(fmt.Sprintf("| Start | %s |\n", formatDate(r.Start)))
	sb.WriteString(fmt.Sprintf("| End | %s |\n", formatDate(r.End)))
	sb.WriteString("\n")

	// Stages
	if len(r.Stages) > 0 {
		sb.WriteString("## Pipeline Stages\n\n")
		sb.WriteString("| Stage | Status | Detail |\n")
		sb.WriteString("|-------|--------|--------|\n")
		for _, s := range r.Stages {
			status := "FAIL"
			if s.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", s.Name, status, s.Detail))
		}
		sb.WriteString("\n")
	}

	// Data sufficiency
	if len(r.Sufficiency) > 0 || len(r.IntegrityErrors) > 0 {
		sb.WriteString("## Data Sufficiency\n\n")
		if len(r.Sufficiency) > 0 {
			sb.WriteString("| Check | Threshold | Actual | Status |\n")
			sb.WriteString("|-------|-----------|--------|--------|\n")
			for _, c := range r.Sufficiency {
				status := "FAIL"
				if c.Pass {
					status = "PASS"
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status))
			}
			sb.WriteString("\n")
		}
		if len(r.IntegrityErrors) > 0 {
			sb.WriteString("### Integrity Errors\n\n")
			for _, e := range r.IntegrityErrors {
				sb.WriteString(fmt.Sprintf("- %s\n", e))
			}
			sb.WriteString("\n")
		}
	}

	// Inputs
	if len(r.Inputs) > 0 || len(r.Skipped) > 0 {
		sb.WriteString("## Inputs\n\n")
		if len(r.Inputs) > 0 {
			sb.WriteString("| Input | Rows | Kept | Invalid Dates | Duplicate Dates | Invalid Values |\n")
			sb.WriteString("|-------|------|------|---------------|-----------------|----------------|\n")
			for _, in := range r.Inputs {
				sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d |\n",
					in.Name, in.Rows, in.Kept, in.InvalidDates, in.DuplicateDates, in.InvalidValues))
			}
			sb.WriteString("\n")
		}
		if len(r.FlowFields) > 0 {
			sb.WriteString(fmt.Sprintf("Flow fields: %s\n\n", strings.Join(r.FlowFields, ", ")))
		}
		if len(r.Skipped) > 0 {
			sb.WriteString("### Skipped\n\n")
			for _, s := range r.Skipped {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", s.Name, s.Reason))
			}
			sb.WriteString("\n")
		}
	}

	// Schema mapping
	if len(r.MappingIssues) > 0 {
		sb.WriteString("## Schema Mapping Issues\n\n")
		for _, issue := range r.MappingIssues {
			sb.WriteString(fmt.Sprintf("- %s\n", issue))
		}
		sb.WriteString("\n")
	}

	// Normalization
	if len(r.Normalization) > 0 {
		sb.WriteString("## Normalization\n\n")
		sb.WriteString("| Column | N | Mean | StdDev | Note |\n")
		sb.WriteString("|--------|---|------|--------|------|\n")
		for _, n := range r.Normalization {
			note := ""
			switch {
			case n.Absent:
				note = "absent, z = 0"
			case n.N < 2:
				note = "too few observations, z undefined"
			case n.Degenerate:
				note = "zero variance, minimum stddev used"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s |\n",
				n.Column, n.N, formatFloat(n.Mean, 6), formatFloat(n.StdDev, 6), note))
		}
		sb.WriteString("\n")
	}

	if d := r.Diagnostics; d != nil {
		// Regimes
		sb.WriteString("## Risk Regimes\n\n")
		if d.Regimes.LatestRegime.IsValid() {
			sb.WriteString("| Regime | Rows |\n")
			sb.WriteString("|--------|------|\n")
			for _, regime := range domain.Regimes {
				sb.WriteString(fmt.Sprintf("| %s | %d |\n", regime, d.Regimes.Counts[regime]))
			}
			sb.WriteString(fmt.Sprintf("| Undefined | %d |\n", d.Regimes.Undefined))
			sb.WriteString("\n")
			sb.WriteString(fmt.Sprintf("Latest: %s score %s (%s)\n\n",
				formatDate(d.Regimes.LatestDate), formatFloat(d.Regimes.LatestScore, 2), d.Regimes.LatestRegime))
			sb.WriteString(fmt.Sprintf("Score P10 / median / P90: %s / %s / %s\n\n",
				formatFloat(d.Regimes.ScoreP10, 2), formatFloat(d.Regimes.ScoreMedian, 2), formatFloat(d.Regimes.ScoreP90, 2)))
		} else {
			sb.WriteString("No risk scores available.\n\n")
		}

		// Drawdown
		sb.WriteString("## Benchmark Drawdown\n\n")
		if d.Drawdown.Index >= 0 {
			sb.WriteString(fmt.Sprintf("Maximum drawdown %s on %s (peak %s)\n\n",
				formatPct(d.Drawdown.Value), formatDate(d.Drawdown.Date), formatDate(d.Drawdown.PeakDate)))
		} else {
			sb.WriteString("No benchmark closes available.\n\n")
		}

		// Rolling correlation and beta
		if len(d.Correlations) > 0 {
			sb.WriteString("## Rolling Correlation and Beta vs Benchmark\n\n")
			sb.WriteString("| Instrument | Corr Latest | Corr Mean | Beta Latest | Beta Mean |\n")
			sb.WriteString("|------------|-------------|-----------|-------------|-----------|\n")
			for i, c := range d.Correlations {
				beta := d.Betas[i]
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
					c.Instrument, formatFloat(c.Latest, 4), formatFloat(c.Mean, 4),
					formatFloat(beta.Latest, 4), formatFloat(beta.Mean, 4)))
			}
			sb.WriteString("\n")
		}

		// Lead-lag
		if len(d.LeadLag) > 0 {
			sb.WriteString("## Flow Lead-Lag\n\n")
			sb.WriteString("Positive lag: flow leads returns.\n\n")
			sb.WriteString("| Instrument | Peak Lag | Peak Corr | Corr at 0 |\n")
			sb.WriteString("|------------|----------|-----------|-----------|\n")
			for _, ll := range d.LeadLag {
				atZero := math.NaN()
				for _, lc := range ll.Lags {
					if lc.Lag == 0 {
						atZero = lc.Correlation
					}
				}
				sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
					ll.Instrument, ll.Peak.Lag, formatFloat(ll.Peak.Correlation, 4), formatFloat(atZero, 4)))
			}
			sb.WriteString("\n")
		}

		// Momentum
		if len(d.Momentum.Entries) > 0 {
			sb.WriteString(fmt.Sprintf("## Momentum (%s)\n\n", formatDate(d.Momentum.AsOf)))
			sb.WriteString("| Rank | Instrument | Return | vs Benchmark |\n")
			sb.WriteString("|------|------------|--------|--------------|\n")
			for i, e := range d.Momentum.Entries {
				sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
					i+1, e.Instrument, formatPct(e.Return), formatPct(e.Excess)))
			}
			sb.WriteString("\n")
		}

		// Correlation matrix
		if len(d.Matrix.Columns) > 1 {
			sb.WriteString("## Return Correlation Matrix\n\n")
			sb.WriteString("| |")
			for _, c := range d.Matrix.Columns {
				sb.WriteString(fmt.Sprintf(" %s |", c))
			}
			sb.WriteString("\n|---|")
			sb.WriteString(strings.Repeat("---|", len(d.Matrix.Columns)))
			sb.WriteString("\n")
			for i, row := range d.Matrix.Values {
				sb.WriteString(fmt.Sprintf("| %s |", d.Matrix.Columns[i]))
				for _, v := range row {
					sb.WriteString(fmt.Sprintf(" %s |", formatFloat(v, 2)))
				}
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}

	// Warnings
	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	// Reproducibility
	if rep := r.Reproducibility; rep.Command != "" {
		sb.WriteString("## Reproducibility\n\n")
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Generator Version | %s |\n", orNA(rep.GeneratorVersion)))
		sb.WriteString(fmt.Sprintf("| Commit | %s |\n", orNA(rep.Commit)))
		sb.WriteString(fmt.Sprintf("| Command | `%s` |\n", rep.Command))
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func formatPct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Format(domain.DateLayout)
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
