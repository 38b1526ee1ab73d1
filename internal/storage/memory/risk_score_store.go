package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// RiskScoreStore is an in-memory implementation of storage.RiskScoreStore.
type RiskScoreStore struct {
	mu   sync.RWMutex
	data map[scoreKey]*domain.RiskScoreRecord
}

type scoreKey struct {
	datasetID string
	date      time.Time
}

// NewRiskScoreStore creates a new in-memory risk score store.
func NewRiskScoreStore() *RiskScoreStore {
	return &RiskScoreStore{
		data: make(map[scoreKey]*domain.RiskScoreRecord),
	}
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *RiskScoreStore) InsertBulk(_ context.Context, rows []*domain.RiskScoreRecord) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[scoreKey]struct{}, len(rows))
	for _, r := range rows {
		if err := storage.ValidateRiskScore(r); err != nil {
			return err
		}
		key := scoreKey{datasetID: r.DatasetID, date: r.Date.UTC()}
		if _, exists := s.data[key]; exists {
			return storage.ScoreDuplicate(r)
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ScoreDuplicate(r)
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		rowCopy := *r
		s.data[scoreKey{datasetID: r.DatasetID, date: r.Date.UTC()}] = &rowCopy
	}

	return nil
}

// GetByDataset retrieves all rows of a dataset, ordered by date ASC.
func (s *RiskScoreStore) GetByDataset(_ context.Context, datasetID string) ([]*domain.RiskScoreRecord, error) {
	return s.filter(func(r *domain.RiskScoreRecord) bool {
		return r.DatasetID == datasetID
	}), nil
}

// GetByTimeRange retrieves rows within [start, end] (inclusive).
func (s *RiskScoreStore) GetByTimeRange(_ context.Context, datasetID string, start, end time.Time) ([]*domain.RiskScoreRecord, error) {
	return s.filter(func(r *domain.RiskScoreRecord) bool {
		return r.DatasetID == datasetID && !r.Date.Before(start) && !r.Date.After(end)
	}), nil
}

// Exists reports whether any row of the dataset is stored.
func (s *RiskScoreStore) Exists(_ context.Context, datasetID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k := range s.data {
		if k.datasetID == datasetID {
			return true, nil
		}
	}
	return false, nil
}

// ListDatasets returns the distinct dataset IDs, sorted ascending.
func (s *RiskScoreStore) ListDatasets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		seen[k.datasetID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RiskScoreStore) filter(keep func(*domain.RiskScoreRecord) bool) []*domain.RiskScoreRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RiskScoreRecord
	for _, r := range s.data {
		if keep(r) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result
}

var _ storage.RiskScoreStore = (*RiskScoreStore)(nil)
