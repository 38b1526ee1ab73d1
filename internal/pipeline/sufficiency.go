package pipeline

import (
	"fmt"
	"math"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/features"
	"market-risk-lab/internal/risk"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// SufficiencyChecker validates that the scored table supports every
// derived column and that scores and regimes are consistent.
type SufficiencyChecker struct {
	features features.Config
	risk     risk.Config
}

// NewSufficiencyChecker creates a new sufficiency checker.
func NewSufficiencyChecker(featureCfg features.Config, riskCfg risk.Config) *SufficiencyChecker {
	return &SufficiencyChecker{
		features: featureCfg,
		risk:     riskCfg,
	}
}

// Check performs all sufficiency checks on the scored table.
func (c *SufficiencyChecker) Check(frame *domain.Frame) *SufficiencyResult {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 6),
		AllPass: true,
		Errors:  []string{},
	}

	add := func(check SufficiencyCheck) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
	}

	// Check 1: at least one instrument besides the benchmark (correlations, beta)
	instruments := len(frame.NamesWithSuffix(domain.SuffixClose))
	add(SufficiencyCheck{
		Name:      "instruments",
		Threshold: ">= 2",
		Actual:    fmt.Sprintf("%d", instruments),
		Pass:      instruments >= 2,
	})

	// Check 2: enough benchmark closes for the widest volatility window
	closes, _ := frame.Float(domain.CloseColumn(c.features.Benchmark))
	needed := maxWindow(c.features.VolWindows) + 1
	defined := countDefined(closes)
	add(SufficiencyCheck{
		Name:      "benchmark_closes",
		Threshold: fmt.Sprintf(">= %d", needed),
		Actual:    fmt.Sprintf("%d", defined),
		Pass:      defined >= needed,
	})

	// Check 3: enough rows for the momentum column
	add(SufficiencyCheck{
		Name:      "momentum_rows",
		Threshold: fmt.Sprintf("> %d", c.features.MomentumPeriod),
		Actual:    fmt.Sprintf("%d", frame.Len()),
		Pass:      frame.Len() > c.features.MomentumPeriod,
	})

	// Check 4: the volatility z-score can be fitted
	add(c.observations(frame, c.risk.VolColumn))

	// Check 5: the flow z-score can be fitted
	add(c.observations(frame, c.risk.FlowColumn))

	// Check 6: at least one defined score
	scores, _ := frame.Float(domain.ColumnRiskScore)
	scored := countDefined(scores)
	add(SufficiencyCheck{
		Name:      "scored_rows",
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d", scored),
		Pass:      scored >= 1,
	})

	result.Errors = c.integrityErrors(frame)
	if len(result.Errors) > 0 {
		result.AllPass = false
	}

	return result
}

func (c *SufficiencyChecker) observations(frame *domain.Frame, column string) SufficiencyCheck {
	check := SufficiencyCheck{
		Name:      column + "_observations",
		Threshold: ">= 2",
	}
	values, ok := frame.Float(column)
	if !ok {
		check.Actual = "absent"
		return check
	}
	n := countDefined(values)
	check.Actual = fmt.Sprintf("%d", n)
	check.Pass = n >= 2
	return check
}

// integrityErrors verifies ordering, score bounds and score/regime agreement.
func (c *SufficiencyChecker) integrityErrors(frame *domain.Frame) []string {
	var errs []string

	dates := frame.Dates()
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			errs = append(errs, fmt.Sprintf("dates not strictly increasing at %s", dates[i].Format(domain.DateLayout)))
		}
	}

	scores, hasScores := frame.Float(domain.ColumnRiskScore)
	regimes, hasRegimes := frame.Labels(domain.ColumnRiskRegime)
	if !hasScores || !hasRegimes {
		return errs
	}

	for i, score := range scores {
		day := dates[i].Format(domain.DateLayout)
		if math.IsNaN(score) {
			if regimes[i] != "" {
				errs = append(errs, fmt.Sprintf("regime %s without a score on %s", regimes[i], day))
			}
			continue
		}
		if score < c.risk.MinScore || score > c.risk.MaxScore {
			errs = append(errs, fmt.Sprintf("score %.4f out of [%g, %g] on %s", score, c.risk.MinScore, c.risk.MaxScore, day))
		}
		if want := risk.Classify(score, c.risk); regimes[i] != want.String() {
			errs = append(errs, fmt.Sprintf("regime %s does not match score %.4f (%s) on %s", regimes[i], score, want, day))
		}
	}

	return errs
}

func countDefined(values []float64) int {
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

func maxWindow(windows []int) int {
	m := 0
	for _, w := range windows {
		if w > m {
			m = w
		}
	}
	return m
}
