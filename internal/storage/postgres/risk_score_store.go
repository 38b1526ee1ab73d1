package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// RiskScoreStore implements storage.RiskScoreStore using PostgreSQL.
type RiskScoreStore struct {
	pool *Pool
}

// NewRiskScoreStore creates a new RiskScoreStore.
func NewRiskScoreStore(pool *Pool) *RiskScoreStore {
	return &RiskScoreStore{pool: pool}
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO risk_scores (` + riskScoreColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, r := range rows {
		_, err := tx.Exec(ctx, query,
			r.DatasetID,
			r.Date,
			r.Vol7d,
			r.Vol30d,
			r.Vol90d,
			r.FIINet,
			r.VolZ,
			r.FlowZ,
			r.Score,
			string(r.Regime),
		)
		if err != nil {
			if dup := duplicateKeyError(err, storage.ScoreDuplicate(r)); dup != nil {
				return dup
			}
			return fmt.Errorf("insert risk score in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByDataset retrieves all rows of a dataset, ordered by date ASC.
func (s *RiskScoreStore) GetByDataset(ctx context.Context, datasetID string) ([]*domain.RiskScoreRecord, error) {
	query := `
		SELECT ` + riskScoreColumns + `
		FROM risk_scores
		WHERE dataset_id = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("get risk scores by dataset: %w", err)
	}
	defer rows.Close()

	return scanRiskScores(rows)
}

// GetByTimeRange retrieves rows within [start, end] (inclusive).
func (s *RiskScoreStore) GetByTimeRange(ctx context.Context, datasetID string, start, end time.Time) ([]*domain.RiskScoreRecord, error) {
	query := `
		SELECT ` + riskScoreColumns + `
		FROM risk_scores
		WHERE dataset_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, datasetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get risk scores by time range: %w", err)
	}
	defer rows.Close()

	return scanRiskScores(rows)
}

// Exists reports whether any row of the dataset is stored.
func (s *RiskScoreStore) Exists(ctx context.Context, datasetID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM risk_scores WHERE dataset_id = $1)`, datasetID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check dataset exists: %w", err)
	}
	return exists, nil
}

// ListDatasets returns the distinct dataset IDs, sorted ascending.
func (s *RiskScoreStore) ListDatasets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT dataset_id FROM risk_scores ORDER BY dataset_id ASC`)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset ids: %w", err)
	}
	return ids, nil
}

// scanRiskScores scans multiple rows into a slice of RiskScoreRecord.
func scanRiskScores(rows pgx.Rows) ([]*domain.RiskScoreRecord, error) {
	var records []*domain.RiskScoreRecord

	for rows.Next() {
		var r domain.RiskScoreRecord
		var regime string

		err := rows.Scan(
			&r.DatasetID,
			&r.Date,
			&r.Vol7d,
			&r.Vol30d,
			&r.Vol90d,
			&r.FIINet,
			&r.VolZ,
			&r.FlowZ,
			&r.Score,
			&regime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan risk score row: %w", err)
		}

		r.Date = r.Date.UTC()
		r.Regime = domain.Regime(regime)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk score rows: %w", err)
	}

	return records, nil
}
