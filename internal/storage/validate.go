package storage

import "market-risk-lab/internal/domain"

// ValidateFeature checks the key fields of an instrument feature row.
func ValidateFeature(f *domain.InstrumentFeature) error {
	if f == nil || f.DatasetID == "" || f.Instrument == "" || f.Date.IsZero() {
		return ErrInvalidInput
	}
	return nil
}

// ValidateRiskScore checks the key fields of a risk score row.
func ValidateRiskScore(r *domain.RiskScoreRecord) error {
	if r == nil || r.DatasetID == "" || r.Date.IsZero() {
		return ErrInvalidInput
	}
	if r.Regime != domain.RegimeNone && !r.Regime.IsValid() {
		return ErrInvalidInput
	}
	return nil
}
