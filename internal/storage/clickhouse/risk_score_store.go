package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// RiskScoreStore implements storage.RiskScoreStore using ClickHouse.
type RiskScoreStore struct {
	conn *Conn
}

// NewRiskScoreStore creates a new RiskScoreStore.
func NewRiskScoreStore(conn *Conn) *RiskScoreStore {
	return &RiskScoreStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RiskScoreStore = (*RiskScoreStore)(nil)

const riskScoreColumns = `dataset_id, date, vol_7d, vol_30d, vol_90d, fii_net, vol_z, fii_z, score, regime`

// InsertBulk adds multiple rows. Fails entire batch on duplicate (dataset_id, date).
func (s *RiskScoreStore) InsertBulk(ctx context.Context, rows []*domain.RiskScoreRecord) error {
	if len(rows) == 0 {
		return nil
	}

	type key struct {
		datasetID string
		date      time.Time
	}
	seen := make(map[key]struct{}, len(rows))
	for _, r := range rows {
		if err := storage.ValidateRiskScore(r); err != nil {
			return err
		}
		k := key{r.DatasetID, r.Date.UTC()}
		if _, exists := seen[k]; exists {
			return storage.ScoreDuplicate(r)
		}
		seen[k] = struct{}{}
	}

	for _, r := range rows {
		exists, err := s.exists(ctx, r.DatasetID, r.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ScoreDuplicate(r)
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO risk_scores (`+riskScoreColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.DatasetID, r.Date,
			r.Vol7d, r.Vol30d, r.Vol90d, r.FIINet,
			r.VolZ, r.FlowZ, r.Score, string(r.Regime),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByDataset retrieves all rows of a dataset, ordered by date ASC.
func (s *RiskScoreStore) GetByDataset(ctx context.Context, datasetID string) ([]*domain.RiskScoreRecord, error) {
	query := `
		SELECT ` + riskScoreColumns + `
		FROM risk_scores
		WHERE dataset_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query by dataset: %w", err)
	}
	defer rows.Close()

	return scanRiskScores(rows)
}

// GetByTimeRange retrieves rows within [start, end] (inclusive).
func (s *RiskScoreStore) GetByTimeRange(ctx context.Context, datasetID string, start, end time.Time) ([]*domain.RiskScoreRecord, error) {
	query := `
		SELECT ` + riskScoreColumns + `
		FROM risk_scores
		WHERE dataset_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, datasetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanRiskScores(rows)
}

// Exists reports whether any row of the dataset is stored.
func (s *RiskScoreStore) Exists(ctx context.Context, datasetID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM risk_scores WHERE dataset_id = ?`, datasetID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListDatasets returns the distinct dataset IDs, sorted ascending.
func (s *RiskScoreStore) ListDatasets(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT dataset_id FROM risk_scores ORDER BY dataset_id ASC`)
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

// exists checks if a row with the given key exists.
func (s *RiskScoreStore) exists(ctx context.Context, datasetID string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM risk_scores
		WHERE dataset_id = ? AND date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, datasetID, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanRiskScores scans multiple rows.
func scanRiskScores(rows chRows) ([]*domain.RiskScoreRecord, error) {
	var records []*domain.RiskScoreRecord

	for rows.Next() {
		var r domain.RiskScoreRecord
		var regime string

		err := rows.Scan(
			&r.DatasetID, &r.Date,
			&r.Vol7d, &r.Vol30d, &r.Vol90d, &r.FIINet,
			&r.VolZ, &r.FlowZ, &r.Score, &regime,
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
