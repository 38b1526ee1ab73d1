package verification

import (
	"context"
	"fmt"
	"sort"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// VerificationResult contains the result of verifying a single row.
type VerificationResult struct {
	Table       string            // instrument_features or risk_scores
	Key         string            // instrument@date or date
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for one dataset.
type VerificationReport struct {
	DatasetID     string
	TotalRows     int                  // recomputed rows checked
	MatchedRows   int                  // rows that matched within tolerance
	DivergentRows int                  // rows with divergences
	MissingRows   int                  // recomputed rows absent from the sink
	ExtraRows     int                  // stored rows with no recomputed counterpart
	Results       []VerificationResult // divergent, missing and extra rows only
}

// Match reports whether the stored dataset equals the recomputed one.
func (r *VerificationReport) Match() bool {
	return r.DivergentRows == 0 && r.MissingRows == 0 && r.ExtraRows == 0
}

// DatasetVerifier compares a stored dataset with recomputed rows.
type DatasetVerifier struct {
	featureStore storage.InstrumentFeatureStore
	scoreStore   storage.RiskScoreStore
}

// NewDatasetVerifier creates a verifier reading from the given stores.
func NewDatasetVerifier(features storage.InstrumentFeatureStore, scores storage.RiskScoreStore) *DatasetVerifier {
	return &DatasetVerifier{
		featureStore: features,
		scoreStore:   scores,
	}
}

// VerifyDataset loads datasetID from the stores and compares it row by row
// with the recomputed features and scores.
func (v *DatasetVerifier) VerifyDataset(
	ctx context.Context,
	datasetID string,
	features []*domain.InstrumentFeature,
	scores []*domain.RiskScoreRecord,
) (*VerificationReport, error) {
	storedFeatures, err := v.featureStore.GetByDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load stored features: %w", err)
	}
	storedScores, err := v.scoreStore.GetByDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load stored risk scores: %w", err)
	}

	report := &VerificationReport{DatasetID: datasetID}

	featureIndex := make(map[string]*domain.InstrumentFeature, len(storedFeatures))
	for _, f := range storedFeatures {
		featureIndex[featureKey(f)] = f
	}
	for _, f := range features {
		key := featureKey(f)
		stored, ok := featureIndex[key]
		delete(featureIndex, key)
		report.record("instrument_features", key, ok, func() []FieldDivergence {
			return CompareFeatures(stored, f)
		})
	}
	for _, key := range extraKeys(featureIndex) {
		report.extra("instrument_features", key)
	}

	scoreIndex := make(map[string]*domain.RiskScoreRecord, len(storedScores))
	for _, r := range storedScores {
		scoreIndex[scoreKey(r)] = r
	}
	for _, r := range scores {
		key := scoreKey(r)
		stored, ok := scoreIndex[key]
		delete(scoreIndex, key)
		report.record("risk_scores", key, ok, func() []FieldDivergence {
			return CompareRiskScores(stored, r)
		})
	}
	for _, key := range extraKeys(scoreIndex) {
		report.extra("risk_scores", key)
	}

	return report, nil
}

func (r *VerificationReport) record(table, key string, ok bool, compare func() []FieldDivergence) {
	r.TotalRows++
	if !ok {
		r.MissingRows++
		r.Results = append(r.Results, VerificationResult{
			Table:       table,
			Key:         key,
			Divergences: []FieldDivergence{{Field: "Row", Expected: key, Actual: nil}},
		})
		return
	}

	divergences := compare()
	if len(divergences) == 0 {
		r.MatchedRows++
		return
	}
	r.DivergentRows++
	r.Results = append(r.Results, VerificationResult{
		Table:       table,
		Key:         key,
		Divergences: divergences,
	})
}

// extraKeys returns the keys of stored rows left unmatched, sorted.
func extraKeys[T any](remaining map[string]T) []string {
	keys := make([]string, 0, len(remaining))
	for key := range remaining {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r *VerificationReport) extra(table, key string) {
	r.ExtraRows++
	r.Results = append(r.Results, VerificationResult{
		Table:       table,
		Key:         key,
		Divergences: []FieldDivergence{{Field: "Row", Expected: nil, Actual: key}},
	})
}
