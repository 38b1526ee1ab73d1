package risk

import (
	"fmt"

	"market-risk-lab/internal/domain"
)

// Fitted is the normalization fitted on one dataset.
type Fitted struct {
	Vol  Normalizer
	Flow Normalizer
}

// FitFrame runs the normalization pass on the configured source columns.
// This is the only place sample statistics are estimated; scoring applies
// the fitted constants row by row.
func FitFrame(frame *domain.Frame, cfg Config) Fitted {
	vol, _ := frame.Float(cfg.VolColumn)
	flow, _ := frame.Float(cfg.FlowColumn)
	return Fitted{
		Vol:  Fit(cfg.VolColumn, vol, cfg.NormalizationWindow, cfg.MinStdDev),
		Flow: Fit(cfg.FlowColumn, flow, cfg.NormalizationWindow, cfg.MinStdDev),
	}
}

// Apply appends vol_z, fii_z, Risk_Score_v2 and Risk_Regime to frame.
// An absent source column contributes a constant zero z-score.
func Apply(frame *domain.Frame, cfg Config) (*domain.Frame, Fitted, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Fitted{}, err
	}

	fitted := FitFrame(frame, cfg)
	vol, _ := frame.Float(cfg.VolColumn)
	flow, _ := frame.Float(cfg.FlowColumn)

	rows := frame.Len()
	volZ := fitted.Vol.Apply(vol, rows)
	flowZ := fitted.Flow.Apply(flow, rows)

	scores := make([]float64, rows)
	regimes := make([]string, rows)
	for i := range scores {
		scores[i] = Score(volZ[i], flowZ[i], cfg)
		regimes[i] = Classify(scores[i], cfg).String()
	}

	out, err := frame.With(
		domain.Column{Name: domain.ColumnVolZ, Values: volZ},
		domain.Column{Name: domain.ColumnFlowZ, Values: flowZ},
		domain.Column{Name: domain.ColumnRiskScore, Values: scores},
		domain.Column{Name: domain.ColumnRiskRegime, Labels: regimes},
	)
	if err != nil {
		return nil, Fitted{}, fmt.Errorf("apply risk score: %w", err)
	}
	return out, fitted, nil
}
