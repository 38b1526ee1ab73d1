package verification

import (
	"context"
	"testing"
	"time"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage/memory"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func ptrFloat64(v float64) *float64 {
	return &v
}

func TestCompareRiskScores_ExactMatch(t *testing.T) {
	stored := &domain.RiskScoreRecord{
		DatasetID: "ds1",
		Date:      day(2),
		Vol30d:    ptrFloat64(0.012),
		FIINet:    ptrFloat64(-1500),
		VolZ:      ptrFloat64(0.5),
		FlowZ:     ptrFloat64(-0.25),
		Score:     ptrFloat64(57.5),
		Regime:    domain.RegimeMedium,
	}
	computed := *stored

	if divergences := CompareRiskScores(stored, &computed); len(divergences) != 0 {
		t.Errorf("Expected no divergences, got %v", divergences)
	}
}

func TestCompareRiskScores_ScoreDivergence(t *testing.T) {
	stored := &domain.RiskScoreRecord{Date: day(2), Score: ptrFloat64(57.5), Regime: domain.RegimeMedium}
	computed := &domain.RiskScoreRecord{Date: day(2), Score: ptrFloat64(61), Regime: domain.RegimeHigh}

	divergences := CompareRiskScores(stored, computed)
	if len(divergences) != 2 {
		t.Fatalf("Expected 2 divergences, got %d: %v", len(divergences), divergences)
	}
	if divergences[0].Field != "Score" {
		t.Errorf("Expected Score divergence first, got %s", divergences[0].Field)
	}
	if divergences[1].Field != "Regime" {
		t.Errorf("Expected Regime divergence, got %s", divergences[1].Field)
	}
	if divergences[1].Expected != "High" || divergences[1].Actual != "Medium" {
		t.Errorf("Unexpected regime values: %v", divergences[1])
	}
}

func TestCompareFeatures_WithinTolerance(t *testing.T) {
	stored := &domain.InstrumentFeature{Instrument: "NIFTY_IT", Date: day(3), Close: ptrFloat64(100), Return: ptrFloat64(0.01)}
	computed := &domain.InstrumentFeature{Instrument: "NIFTY_IT", Date: day(3), Close: ptrFloat64(100 + 5e-8), Return: ptrFloat64(0.01)}

	if divergences := CompareFeatures(stored, computed); len(divergences) != 0 {
		t.Errorf("Expected values within tolerance to match, got %v", divergences)
	}
}

func TestCompareFeatures_NullVsValue(t *testing.T) {
	stored := &domain.InstrumentFeature{Instrument: "NIFTY_IT", Date: day(3), Close: ptrFloat64(100)}
	computed := &domain.InstrumentFeature{Instrument: "NIFTY_IT", Date: day(3), Close: ptrFloat64(100), Return: ptrFloat64(0.02)}

	divergences := CompareFeatures(stored, computed)
	if len(divergences) != 1 || divergences[0].Field != "Return" {
		t.Fatalf("Expected a single Return divergence, got %v", divergences)
	}
	if divergences[0].Actual != nil {
		t.Errorf("Expected stored value nil, got %v", divergences[0].Actual)
	}
}

func TestFloatEquals(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{1.0, 1.0, true},
		{1.0, 1.0 + 1e-8, true},
		{1.0, 1.0 + 1e-6, false},
		{0, -0, true},
	}
	for _, tt := range tests {
		if got := floatEquals(tt.a, tt.b); got != tt.want {
			t.Errorf("floatEquals(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDatasetVerifier_VerifyDataset(t *testing.T) {
	ctx := context.Background()
	featureStore := memory.NewInstrumentFeatureStore()
	scoreStore := memory.NewRiskScoreStore()

	features := []*domain.InstrumentFeature{
		{DatasetID: "ds1", Instrument: "NIFTY_50", Date: day(1), Close: ptrFloat64(100)},
		{DatasetID: "ds1", Instrument: "NIFTY_50", Date: day(2), Close: ptrFloat64(101), Return: ptrFloat64(0.01)},
	}
	scores := []*domain.RiskScoreRecord{
		{DatasetID: "ds1", Date: day(1)},
		{DatasetID: "ds1", Date: day(2), Score: ptrFloat64(45), Regime: domain.RegimeMedium},
	}
	if err := featureStore.InsertBulk(ctx, features); err != nil {
		t.Fatalf("InsertBulk features: %v", err)
	}
	if err := scoreStore.InsertBulk(ctx, scores); err != nil {
		t.Fatalf("InsertBulk scores: %v", err)
	}

	verifier := NewDatasetVerifier(featureStore, scoreStore)

	t.Run("match", func(t *testing.T) {
		report, err := verifier.VerifyDataset(ctx, "ds1", features, scores)
		if err != nil {
			t.Fatalf("VerifyDataset: %v", err)
		}
		if !report.Match() {
			t.Errorf("Expected match, got %+v", report.Results)
		}
		if report.TotalRows != 4 || report.MatchedRows != 4 {
			t.Errorf("Expected 4/4 matched rows, got %d/%d", report.MatchedRows, report.TotalRows)
		}
	})

	t.Run("divergent and missing", func(t *testing.T) {
		changed := []*domain.RiskScoreRecord{
			{DatasetID: "ds1", Date: day(1)},
			{DatasetID: "ds1", Date: day(2), Score: ptrFloat64(65), Regime: domain.RegimeHigh},
			{DatasetID: "ds1", Date: day(3)},
		}
		report, err := verifier.VerifyDataset(ctx, "ds1", features[:1], changed)
		if err != nil {
			t.Fatalf("VerifyDataset: %v", err)
		}
		if report.Match() {
			t.Fatal("Expected mismatch")
		}
		if report.DivergentRows != 1 {
			t.Errorf("Expected 1 divergent row, got %d", report.DivergentRows)
		}
		if report.MissingRows != 1 {
			t.Errorf("Expected 1 missing row, got %d", report.MissingRows)
		}
		if report.ExtraRows != 1 {
			t.Errorf("Expected 1 extra row (NIFTY_50@2024-01-02), got %d", report.ExtraRows)
		}
	})

	t.Run("unknown dataset", func(t *testing.T) {
		report, err := verifier.VerifyDataset(ctx, "other", features, scores)
		if err != nil {
			t.Fatalf("VerifyDataset: %v", err)
		}
		if report.MissingRows != 4 {
			t.Errorf("Expected every row missing, got %d", report.MissingRows)
		}
	})
}
