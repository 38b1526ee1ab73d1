package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// InstrumentFeatureStore implements storage.InstrumentFeatureStore using ClickHouse.
type InstrumentFeatureStore struct {
	conn *Conn
}

// NewInstrumentFeatureStore creates a new InstrumentFeatureStore.
func NewInstrumentFeatureStore(conn *Conn) *InstrumentFeatureStore {
	return &InstrumentFeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.InstrumentFeatureStore = (*InstrumentFeatureStore)(nil)

// InsertBulk adds multiple rows. Fails entire batch on duplicate (dataset_id, instrument, date).
// MergeTree does not enforce uniqueness, so duplicates are checked before the insert.
func (s *InstrumentFeatureStore) InsertBulk(ctx context.Context, rows []*domain.InstrumentFeature) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		datasetID  string
		instrument string
		date       time.Time
	}
	seen := make(map[key]struct{}, len(rows))
	datasets := make(map[string]struct{})
	for _, r := range rows {
		if err := storage.ValidateFeature(r); err != nil {
			return err
		}
		k := key{r.DatasetID, r.Instrument, r.Date.UTC()}
		if _, exists := seen[k]; exists {
			return storage.FeatureDuplicate(r)
		}
		seen[k] = struct{}{}
		datasets[r.DatasetID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for datasetID := range datasets {
		existing, err := s.GetByDataset(ctx, datasetID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, e := range existing {
			if _, dup := seen[key{e.DatasetID, e.Instrument, e.Date.UTC()}]; dup {
				return storage.FeatureDuplicate(e)
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO instrument_features (
			dataset_id, instrument, date, close, return_1d, return_30d
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(r.DatasetID, r.Instrument, r.Date, r.Close, r.Return, r.Return30d)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByDataset retrieves all rows of a dataset, ordered by instrument, date ASC.
func (s *InstrumentFeatureStore) GetByDataset(ctx context.Context, datasetID string) ([]*domain.InstrumentFeature, error) {
	query := `
		SELECT dataset_id, instrument, date, close, return_1d, return_30d
		FROM instrument_features
		WHERE dataset_id = ?
		ORDER BY instrument ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query by dataset: %w", err)
	}
	defer rows.Close()

	return scanInstrumentFeatures(rows)
}

// GetByInstrument retrieves one instrument's rows, ordered by date ASC.
func (s *InstrumentFeatureStore) GetByInstrument(ctx context.Context, datasetID, instrument string) ([]*domain.InstrumentFeature, error) {
	query := `
		SELECT dataset_id, instrument, date, close, return_1d, return_30d
		FROM instrument_features
		WHERE dataset_id = ? AND instrument = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, datasetID, instrument)
	if err != nil {
		return nil, fmt.Errorf("query by instrument: %w", err)
	}
	defer rows.Close()

	return scanInstrumentFeatures(rows)
}

// scanInstrumentFeatures scans multiple rows.
func scanInstrumentFeatures(rows chRows) ([]*domain.InstrumentFeature, error) {
	var features []*domain.InstrumentFeature

	for rows.Next() {
		var f domain.InstrumentFeature

		err := rows.Scan(&f.DatasetID, &f.Instrument, &f.Date, &f.Close, &f.Return, &f.Return30d)
		if err != nil {
			return nil, fmt.Errorf("scan instrument feature row: %w", err)
		}

		f.Date = f.Date.UTC()
		features = append(features, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instrument feature rows: %w", err)
	}

	return features, nil
}
