package pipeline

import (
	"math"
	"testing"
	"time"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/features"
	"market-risk-lab/internal/risk"
)

func smallFrame(t *testing.T, scores []float64, regimes []string) *domain.Frame {
	t.Helper()
	dates := make([]time.Time, len(scores))
	closes := make([]float64, len(scores))
	for i := range dates {
		dates[i] = time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC)
		closes[i] = 100 + float64(i)
	}
	frame, err := domain.NewFrame(dates).With(
		domain.Column{Name: "NIFTY_50_Close", Values: closes},
		domain.Column{Name: "Vol_30d", Values: []float64{math.NaN(), 0.01, 0.02}[:len(scores)]},
		domain.Column{Name: domain.ColumnRiskScore, Values: scores},
		domain.Column{Name: domain.ColumnRiskRegime, Labels: regimes},
	)
	if err != nil {
		t.Fatalf("Failed to build frame: %v", err)
	}
	return frame
}

func TestSufficiencyChecker_InsufficientData(t *testing.T) {
	checker := NewSufficiencyChecker(features.DefaultConfig("NIFTY_50"), risk.DefaultConfig())
	frame := smallFrame(t, []float64{math.NaN(), 45, 61}, []string{"", "Medium", "High"})

	result := checker.Check(frame)

	if result.AllPass {
		t.Fatal("Expected AllPass=false for a three-row table")
	}
	if len(result.Errors) != 0 {
		t.Errorf("Expected no integrity errors, got %v", result.Errors)
	}

	want := map[string]bool{
		"instruments":          false,
		"benchmark_closes":     false,
		"momentum_rows":        false,
		"Vol_30d_observations": true,
		"FII_Net_observations": false,
		"scored_rows":          true,
	}
	if len(result.Checks) != len(want) {
		t.Fatalf("Expected %d checks, got %d", len(want), len(result.Checks))
	}
	for _, c := range result.Checks {
		pass, ok := want[c.Name]
		if !ok {
			t.Errorf("Unexpected check %s", c.Name)
			continue
		}
		if c.Pass != pass {
			t.Errorf("Check %s: expected pass=%v, got %v (actual %s, threshold %s)", c.Name, pass, c.Pass, c.Actual, c.Threshold)
		}
	}

	for _, c := range result.Checks {
		if c.Name == "FII_Net_observations" && c.Actual != "absent" {
			t.Errorf("Expected absent flow column, got %s", c.Actual)
		}
		if c.Name == "benchmark_closes" && c.Threshold != ">= 91" {
			t.Errorf("Expected threshold >= 91, got %s", c.Threshold)
		}
	}
}

func TestSufficiencyChecker_IntegrityErrors(t *testing.T) {
	checker := NewSufficiencyChecker(features.DefaultConfig("NIFTY_50"), risk.DefaultConfig())

	tests := []struct {
		name    string
		scores  []float64
		regimes []string
		errors  int
	}{
		{"consistent", []float64{math.NaN(), 39.9, 60}, []string{"", "Low", "Medium"}, 0},
		{"regime mismatch", []float64{math.NaN(), 39.9, 60.1}, []string{"", "Low", "Medium"}, 1},
		{"regime without score", []float64{math.NaN(), 50, 50}, []string{"High", "Medium", "Medium"}, 1},
		{"score out of range", []float64{math.NaN(), 50, 101}, []string{"", "Medium", "High"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checker.Check(smallFrame(t, tt.scores, tt.regimes))
			if len(result.Errors) != tt.errors {
				t.Errorf("Expected %d integrity errors, got %v", tt.errors, result.Errors)
			}
		})
	}
}
