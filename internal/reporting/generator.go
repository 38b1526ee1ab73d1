package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"market-risk-lab/internal/diagnostics"
	"market-risk-lab/internal/storage"
)

// ErrDatasetRequired is returned when no dataset ID is given and the store
// does not hold exactly one dataset.
var ErrDatasetRequired = errors.New("dataset id required")

// Generator produces reports from stored data.
type Generator struct {
	featureStore storage.InstrumentFeatureStore
	scoreStore   storage.RiskScoreStore
	cfg          diagnostics.Config
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	featureStore storage.InstrumentFeatureStore,
	scoreStore storage.RiskScoreStore,
	cfg diagnostics.Config,
) *Generator {
	return &Generator{
		featureStore: featureStore,
		scoreStore:   scoreStore,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// ResolveDataset returns datasetID, or the only stored dataset when empty.
func (g *Generator) ResolveDataset(ctx context.Context, datasetID string) (string, error) {
	if datasetID != "" {
		exists, err := g.scoreStore.Exists(ctx, datasetID)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", fmt.Errorf("dataset %s: %w", datasetID, storage.ErrNotFound)
		}
		return datasetID, nil
	}

	ids, err := g.scoreStore.ListDatasets(ctx)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no stored datasets: %w", storage.ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: stored datasets are %s", ErrDatasetRequired, strings.Join(ids, ", "))
	}
}

// Generate rebuilds the scored table of a stored dataset and reruns diagnostics on it.
func (g *Generator) Generate(ctx context.Context, datasetID string) (*Report, error) {
	id, err := g.ResolveDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	scores, err := g.scoreStore.GetByDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	features, err := g.featureStore.GetByDataset(ctx, id)
	if err != nil {
		return nil, err
	}

	frame, err := storage.FrameFromRecords(g.cfg.Benchmark, g.cfg.FlowColumn, features, scores)
	if err != nil {
		return nil, fmt.Errorf("rebuild dataset %s: %w", id, err)
	}

	diag, err := diagnostics.Run(frame, g.cfg)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt: g.now(),
		DatasetID:   id,
		Benchmark:   g.cfg.Benchmark,
		Rows:        diag.Rows,
		Start:       diag.Start,
		End:         diag.End,
		Diagnostics: diag,
	}, nil
}
