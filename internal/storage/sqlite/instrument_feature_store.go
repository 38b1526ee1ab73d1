package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// InstrumentFeatureStore implements storage.InstrumentFeatureStore using SQLite.
type InstrumentFeatureStore struct {
	db *DB
}

// NewInstrumentFeatureStore creates a new InstrumentFeatureStore.
func NewInstrumentFeatureStore(db *DB) *InstrumentFeatureStore {
	return &InstrumentFeatureStore{db: db}
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instrument_features (dataset_id, instrument, date, close, return_1d, return_30d)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, r.DatasetID, r.Instrument, formatDate(r.Date), r.Close, r.Return, r.Return30d)
		if err != nil {
			if dup := duplicateKeyError(err, storage.FeatureDuplicate(r)); dup != nil {
				return dup
			}
			return fmt.Errorf("insert instrument feature in bulk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByDataset retrieves all rows of a dataset, ordered by instrument, date ASC.
func (s *InstrumentFeatureStore) GetByDataset(ctx context.Context, datasetID string) ([]*domain.InstrumentFeature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset_id, instrument, date, close, return_1d, return_30d
		FROM instrument_features
		WHERE dataset_id = ?
		ORDER BY instrument ASC, date ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("get instrument features by dataset: %w", err)
	}
	defer rows.Close()

	return scanInstrumentFeatures(rows)
}

// GetByInstrument retrieves one instrument's rows, ordered by date ASC.
func (s *InstrumentFeatureStore) GetByInstrument(ctx context.Context, datasetID, instrument string) ([]*domain.InstrumentFeature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset_id, instrument, date, close, return_1d, return_30d
		FROM instrument_features
		WHERE dataset_id = ? AND instrument = ?
		ORDER BY date ASC`, datasetID, instrument)
	if err != nil {
		return nil, fmt.Errorf("get instrument features by instrument: %w", err)
	}
	defer rows.Close()

	return scanInstrumentFeatures(rows)
}

func scanInstrumentFeatures(rows *sql.Rows) ([]*domain.InstrumentFeature, error) {
	var features []*domain.InstrumentFeature

	for rows.Next() {
		var f domain.InstrumentFeature
		var date string

		if err := rows.Scan(&f.DatasetID, &f.Instrument, &date, &f.Close, &f.Return, &f.Return30d); err != nil {
			return nil, fmt.Errorf("scan instrument feature row: %w", err)
		}

		d, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		f.Date = d
		features = append(features, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instrument feature rows: %w", err)
	}
	return features, nil
}
