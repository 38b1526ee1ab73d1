package storage

import (
	"errors"
	"fmt"

	"market-risk-lab/internal/domain"
)

// Storage errors. Datasets are written once and never updated.
var (
	// ErrNotFound is returned when a dataset or row is not stored.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a row's key is already stored or
	// repeated within the batch. The whole batch is rejected.
	ErrDuplicateKey = errors.New("duplicate key: stored datasets are immutable")

	// ErrInvalidInput is returned when a row is missing its key fields.
	ErrInvalidInput = errors.New("invalid input")
)

// Table names shared by every backend.
const (
	TableInstrumentFeatures = "instrument_features"
	TableRiskScores         = "risk_scores"
)

// DuplicateKeyError names the row that collided. It matches ErrDuplicateKey
// under errors.Is.
type DuplicateKeyError struct {
	Table      string
	DatasetID  string
	Key        string // "<instrument>@<date>" for features, "<date>" for scores
	Constraint string // backend constraint name, when reported
}

func (e *DuplicateKeyError) Error() string {
	msg := fmt.Sprintf("%s: dataset %s row %s", e.Table, e.DatasetID, e.Key)
	if e.Constraint != "" {
		msg += " (" + e.Constraint + ")"
	}
	return msg + ": " + ErrDuplicateKey.Error()
}

// Is reports whether target is ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// FeatureDuplicate returns the duplicate key error for an instrument feature row.
func FeatureDuplicate(f *domain.InstrumentFeature) *DuplicateKeyError {
	return &DuplicateKeyError{
		Table:     TableInstrumentFeatures,
		DatasetID: f.DatasetID,
		Key:       f.Instrument + "@" + f.Date.UTC().Format(domain.DateLayout),
	}
}

// ScoreDuplicate returns the duplicate key error for a risk score row.
func ScoreDuplicate(r *domain.RiskScoreRecord) *DuplicateKeyError {
	return &DuplicateKeyError{
		Table:     TableRiskScores,
		DatasetID: r.DatasetID,
		Key:       r.Date.UTC().Format(domain.DateLayout),
	}
}
