package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// InstrumentFeatureStore implements storage.InstrumentFeatureStore using PostgreSQL.
type InstrumentFeatureStore struct {
	pool *Pool
}

// NewInstrumentFeatureStore creates a new InstrumentFeatureStore.
func NewInstrumentFeatureStore(pool *Pool) *InstrumentFeatureStore {
	return &InstrumentFeatureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InstrumentFeatureStore = (*InstrumentFeatureStore)(nil)

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *InstrumentFeatureStore) InsertBulk(ctx context.Context, rows []*domain.InstrumentFeature) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if err := storage.ValidateFeature(r); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO instrument_features (
			dataset_id, instrument, date, close, return_1d, return_30d
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, r.DatasetID, r.Instrument, r.Date, r.Close, r.Return, r.Return30d)
	}

	results := tx.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if dup := duplicateKeyError(err, storage.FeatureDuplicate(r)); dup != nil {
				return dup
			}
			return fmt.Errorf("insert instrument feature in bulk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByDataset retrieves all rows of a dataset, ordered by instrument, date ASC.
func (s *InstrumentFeatureStore) GetByDataset(ctx context.Context, datasetID string) ([]*domain.InstrumentFeature, error) {
	query := `
		SELECT dataset_id, instrument, date, close, return_1d, return_30d
		FROM instrument_features
		WHERE dataset_id = $1
		ORDER BY instrument ASC, date ASC
	`

	rows, err := s.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("get instrument features by dataset: %w", err)
	}
	defer rows.Close()

	return scanInstrumentFeatures(rows)
}

// GetByInstrument retrieves one instrument's rows, ordered by date ASC.
func (s *InstrumentFeatureStore) GetByInstrument(ctx context.Context, datasetID, instrument string) ([]*domain.InstrumentFeature, error) {
	query := `
		SELECT dataset_id, instrument, date, close, return_1d, return_30d
		FROM instrument_features
		WHERE dataset_id = $1 AND instrument = $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, datasetID, instrument)
	if err != nil {
		return nil, fmt.Errorf("get instrument features by instrument: %w", err)
	}
	defer rows.Close()

	return scanInstrumentFeatures(rows)
}

// scanInstrumentFeatures scans multiple rows into a slice of InstrumentFeature.
func scanInstrumentFeatures(rows pgx.Rows) ([]*domain.InstrumentFeature, error) {
	var features []*domain.InstrumentFeature

	for rows.Next() {
		var f domain.InstrumentFeature

		err := rows.Scan(
			&f.DatasetID,
			&f.Instrument,
			&f.Date,
			&f.Close,
			&f.Return,
			&f.Return30d,
		)
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
