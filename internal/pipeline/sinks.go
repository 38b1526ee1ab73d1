package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/storage"
	"market-risk-lab/internal/verification"
)

// ErrSinkDiverged is returned when a sink already holds the dataset ID
// with different contents.
var ErrSinkDiverged = errors.New("stored dataset diverges from output")

// mirror writes the dataset into one sink. A dataset already present is
// verified against the recomputed rows instead of being rewritten.
func (r *Runner) mirror(
	ctx context.Context,
	log zerolog.Logger,
	sink storage.Sink,
	datasetID string,
	features []*domain.InstrumentFeature,
	scores []*domain.RiskScoreRecord,
) (string, error) {
	log = log.With().Str("sink", sink.Name).Str("dataset_id", datasetID).Logger()

	exists, err := sink.Scores.Exists(ctx, datasetID)
	if err != nil {
		return "", fmt.Errorf("check dataset: %w", err)
	}
	if exists {
		report, err := verification.NewDatasetVerifier(sink.Features, sink.Scores).
			VerifyDataset(ctx, datasetID, features, scores)
		if err != nil {
			return "", fmt.Errorf("verify dataset: %w", err)
		}
		if !report.Match() {
			for _, res := range report.Results {
				for _, d := range res.Divergences {
					log.Debug().
						Str("table", res.Table).
						Str("key", res.Key).
						Str("field", d.Field).
						Interface("expected", d.Expected).
						Interface("actual", d.Actual).
						Msg("row divergence")
				}
			}
			return "", fmt.Errorf("%w: %d divergent, %d missing, %d extra rows",
				ErrSinkDiverged, report.DivergentRows, report.MissingRows, report.ExtraRows)
		}
		log.Info().Int("rows", report.TotalRows).Msg("dataset already present, verified")
		return fmt.Sprintf("already present, %d rows verified", report.TotalRows), nil
	}

	// Scores are written last: their presence marks a complete dataset.
	// Features left by an interrupted run are kept.
	if err := sink.Features.InsertBulk(ctx, features); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return "", fmt.Errorf("insert instrument features: %w", err)
		}
		log.Warn().Msg("instrument features already present, inserting risk scores only")
	} else {
		r.metrics.RecordSinkRows(sink.Name, storage.TableInstrumentFeatures, len(features))
	}

	if err := sink.Scores.InsertBulk(ctx, scores); err != nil {
		return "", fmt.Errorf("insert risk scores: %w", err)
	}
	r.metrics.RecordSinkRows(sink.Name, storage.TableRiskScores, len(scores))

	log.Info().Int("features", len(features)).Int("scores", len(scores)).Msg("dataset mirrored")
	return fmt.Sprintf("%d feature rows, %d score rows", len(features), len(scores)), nil
}
