package domain

import "time"

// InstrumentFeature is one instrument's derived values on one date.
// Corresponds to instrument_features table in the database sinks.
type InstrumentFeature struct {
	DatasetID  string    // fingerprint of the output file
	Instrument string    // e.g. NIFTY_BANK
	Date       time.Time // trading date
	Close      *float64  // NULL when missing
	Return     *float64  // close[t]/close[t-1] - 1, NULL on first row
	Return30d  *float64  // 30-period percent change, NULL on first 30 rows
}

// RiskScoreRecord is the benchmark-level risk state on one date.
// Corresponds to risk_scores table in the database sinks.
type RiskScoreRecord struct {
	DatasetID string
	Date      time.Time
	Vol7d     *float64
	Vol30d    *float64
	Vol90d    *float64
	FIINet    *float64
	VolZ      *float64
	FlowZ     *float64
	Score     *float64 // Risk_Score_v2, in [0, 100] when set
	Regime    Regime   // RegimeNone when Score is NULL
}
