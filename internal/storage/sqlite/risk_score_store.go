package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// RiskScoreStore implements storage.RiskScoreStore using SQLite.
type RiskScoreStore struct {
	db *DB
}

// NewRiskScoreStore creates a new RiskScoreStore.
func NewRiskScoreStore(db *DB) *RiskScoreStore {
	return &RiskScoreStore{db: db}
}

// Compile-time interface check.
var _ storage.RiskScoreStore = (*RiskScoreStore)(nil)

const riskScoreColumns = `dataset_id, date, vol_7d, vol_30d, vol_90d, fii_net, vol_z, fii_z, score, regime`

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *RiskScoreStore) InsertBulk(ctx context.Context, rows []*domain.RiskScoreRecord) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if err := storage.ValidateRiskScore(r); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risk_scores (`+riskScoreColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.DatasetID, formatDate(r.Date),
			r.Vol7d, r.Vol30d, r.Vol90d, r.FIINet,
			r.VolZ, r.FlowZ, r.Score, string(r.Regime),
		)
		if err != nil {
			if dup := duplicateKeyError(err, storage.ScoreDuplicate(r)); dup != nil {
				return dup
			}
			return fmt.Errorf("insert risk score in bulk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByDataset retrieves all rows of a dataset, ordered by date ASC.
func (s *RiskScoreStore) GetByDataset(ctx context.Context, datasetID string) ([]*domain.RiskScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+riskScoreColumns+`
		FROM risk_scores
		WHERE dataset_id = ?
		ORDER BY date ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("get risk scores by dataset: %w", err)
	}
	defer rows.Close()

	return scanRiskScores(rows)
}

// GetByTimeRange retrieves rows within [start, end] (inclusive).
// ISO dates compare correctly as text.
func (s *RiskScoreStore) GetByTimeRange(ctx context.Context, datasetID string, start, end time.Time) ([]*domain.RiskScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+riskScoreColumns+`
		FROM risk_scores
		WHERE dataset_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`, datasetID, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("get risk scores by time range: %w", err)
	}
	defer rows.Close()

	return scanRiskScores(rows)
}

// Exists reports whether any row of the dataset is stored.
func (s *RiskScoreStore) Exists(ctx context.Context, datasetID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM risk_scores WHERE dataset_id = ?)`, datasetID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check dataset exists: %w", err)
	}
	return exists, nil
}

// ListDatasets returns the distinct dataset IDs, sorted ascending.
func (s *RiskScoreStore) ListDatasets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dataset_id FROM risk_scores ORDER BY dataset_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dataset id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRiskScores(rows *sql.Rows) ([]*domain.RiskScoreRecord, error) {
	var records []*domain.RiskScoreRecord

	for rows.Next() {
		var r domain.RiskScoreRecord
		var date, regime string

		err := rows.Scan(
			&r.DatasetID, &date,
			&r.Vol7d, &r.Vol30d, &r.Vol90d, &r.FIINet,
			&r.VolZ, &r.FlowZ, &r.Score, &regime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan risk score row: %w", err)
		}

		d, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		r.Date = d
		r.Regime = domain.Regime(regime)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk score rows: %w", err)
	}
	return records, nil
}
