package storage

import (
	"context"
	"time"

	"market-risk-lab/internal/domain"
)

// InstrumentFeatureStore provides access to instrument_features storage.
type InstrumentFeatureStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate
	// (dataset_id, instrument, date).
	InsertBulk(ctx context.Context, rows []*domain.InstrumentFeature) error

	// GetByDataset retrieves all rows of a dataset, ordered by instrument, date ASC.
	GetByDataset(ctx context.Context, datasetID string) ([]*domain.InstrumentFeature, error)

	// GetByInstrument retrieves one instrument's rows of a dataset, ordered by date ASC.
	GetByInstrument(ctx context.Context, datasetID, instrument string) ([]*domain.InstrumentFeature, error)
}

// RiskScoreStore provides access to risk_scores storage.
type RiskScoreStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate
	// (dataset_id, date).
	InsertBulk(ctx context.Context, rows []*domain.RiskScoreRecord) error

	// GetByDataset retrieves all rows of a dataset, ordered by date ASC.
	GetByDataset(ctx context.Context, datasetID string) ([]*domain.RiskScoreRecord, error)

	// GetByTimeRange retrieves rows of a dataset within [start, end] (inclusive), ordered by date ASC.
	GetByTimeRange(ctx context.Context, datasetID string, start, end time.Time) ([]*domain.RiskScoreRecord, error)

	// Exists reports whether any row of the dataset is stored.
	Exists(ctx context.Context, datasetID string) (bool, error)

	// ListDatasets returns the distinct dataset IDs, sorted ascending.
	ListDatasets(ctx context.Context) ([]string, error)
}

// Sink bundles the stores one backend provides.
type Sink struct {
	Name     string
	Features InstrumentFeatureStore
	Scores   RiskScoreStore
	Close    func() error
}
