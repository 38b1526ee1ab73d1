package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
)

// InstrumentFeatureStore is an in-memory implementation of storage.InstrumentFeatureStore.
type InstrumentFeatureStore struct {
	mu   sync.RWMutex
	data map[featureKey]*domain.InstrumentFeature
}

type featureKey struct {
	datasetID  string
	instrument string
	date       time.Time
}

// NewInstrumentFeatureStore creates a new in-memory instrument feature store.
func NewInstrumentFeatureStore() *InstrumentFeatureStore {
	return &InstrumentFeatureStore{
		data: make(map[featureKey]*domain.InstrumentFeature),
	}
}

func keyOfFeature(f *domain.InstrumentFeature) featureKey {
	return featureKey{datasetID: f.DatasetID, instrument: f.Instrument, date: f.Date.UTC()}
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *InstrumentFeatureStore) InsertBulk(_ context.Context, rows []*domain.InstrumentFeature) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate and check duplicates (existing + intra-batch)
	batchKeys := make(map[featureKey]struct{}, len(rows))
	for _, r := range rows {
		if err := storage.ValidateFeature(r); err != nil {
			return err
		}
		key := keyOfFeature(r)
		if _, exists := s.data[key]; exists {
			return storage.FeatureDuplicate(r)
		}
		if _, exists := batchKeys[key]; exists {
			return storage.FeatureDuplicate(r)
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range rows {
		rowCopy := *r
		s.data[keyOfFeature(r)] = &rowCopy
	}

	return nil
}

// GetByDataset retrieves all rows of a dataset, ordered by instrument, date ASC.
func (s *InstrumentFeatureStore) GetByDataset(_ context.Context, datasetID string) ([]*domain.InstrumentFeature, error) {
	return s.filter(func(f *domain.InstrumentFeature) bool {
		return f.DatasetID == datasetID
	}), nil
}

// GetByInstrument retrieves one instrument's rows, ordered by date ASC.
func (s *InstrumentFeatureStore) GetByInstrument(_ context.Context, datasetID, instrument string) ([]*domain.InstrumentFeature, error) {
	return s.filter(func(f *domain.InstrumentFeature) bool {
		return f.DatasetID == datasetID && f.Instrument == instrument
	}), nil
}

func (s *InstrumentFeatureStore) filter(keep func(*domain.InstrumentFeature) bool) []*domain.InstrumentFeature {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.InstrumentFeature
	for _, f := range s.data {
		if keep(f) {
			rowCopy := *f
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Instrument != result[j].Instrument {
			return result[i].Instrument < result[j].Instrument
		}
		return result[i].Date.Before(result[j].Date)
	})

	return result
}

var _ storage.InstrumentFeatureStore = (*InstrumentFeatureStore)(nil)
