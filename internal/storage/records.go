package storage

import (
	"fmt"
	"math"
	"sort"
	"time"

	"market-risk-lab/internal/domain"
)

// storedVolWindows are the volatility columns the risk_scores table carries.
var storedVolWindows = [3]int{7, 30, 90}

// FeaturesFromFrame flattens every <Name>_Close column of frame and its
// return columns into instrument feature rows. Missing values become NULL.
func FeaturesFromFrame(datasetID string, frame *domain.Frame) []*domain.InstrumentFeature {
	dates := frame.Dates()
	var rows []*domain.InstrumentFeature

	for _, name := range frame.NamesWithSuffix(domain.SuffixClose) {
		instrument, _ := domain.InstrumentFromColumn(name, domain.SuffixClose)
		closes, _ := frame.Float(name)
		returns, _ := frame.Float(domain.ReturnColumn(instrument))
		momentum, _ := frame.Float(domain.MomentumColumn(instrument))

		for i, d := range dates {
			rows = append(rows, &domain.InstrumentFeature{
				DatasetID:  datasetID,
				Instrument: instrument,
				Date:       d,
				Close:      at(closes, i),
				Return:     at(returns, i),
				Return30d:  at(momentum, i),
			})
		}
	}
	return rows
}

// RiskScoresFromFrame extracts one risk score row per frame date.
func RiskScoresFromFrame(datasetID, flowColumn string, frame *domain.Frame) []*domain.RiskScoreRecord {
	dates := frame.Dates()
	vol7, _ := frame.Float(domain.VolColumn(storedVolWindows[0]))
	vol30, _ := frame.Float(domain.VolColumn(storedVolWindows[1]))
	vol90, _ := frame.Float(domain.VolColumn(storedVolWindows[2]))
	flow, _ := frame.Float(flowColumn)
	volZ, _ := frame.Float(domain.ColumnVolZ)
	flowZ, _ := frame.Float(domain.ColumnFlowZ)
	scores, _ := frame.Float(domain.ColumnRiskScore)
	regimes, _ := frame.Labels(domain.ColumnRiskRegime)

	rows := make([]*domain.RiskScoreRecord, len(dates))
	for i, d := range dates {
		r := &domain.RiskScoreRecord{
			DatasetID: datasetID,
			Date:      d,
			Vol7d:     at(vol7, i),
			Vol30d:    at(vol30, i),
			Vol90d:    at(vol90, i),
			FIINet:    at(flow, i),
			VolZ:      at(volZ, i),
			FlowZ:     at(flowZ, i),
			Score:     at(scores, i),
		}
		if regimes != nil {
			r.Regime = domain.Regime(regimes[i])
		}
		rows[i] = r
	}
	return rows
}

// FrameFromRecords rebuilds a scored frame from stored rows.
// The date index comes from the risk score rows; the benchmark's close is
// the first column and the other instruments follow in name order.
func FrameFromRecords(benchmark, flowColumn string, features []*domain.InstrumentFeature, scores []*domain.RiskScoreRecord) (*domain.Frame, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("no risk score rows: %w", ErrNotFound)
	}

	dates := make([]time.Time, len(scores))
	rowOf := make(map[time.Time]int, len(scores))
	for i, s := range scores {
		dates[i] = s.Date.UTC()
		rowOf[dates[i]] = i
	}
	n := len(dates)

	type instrumentCols struct {
		close, ret, momentum []float64
	}
	byInstrument := make(map[string]*instrumentCols)
	for _, f := range features {
		row, ok := rowOf[f.Date.UTC()]
		if !ok {
			continue
		}
		c := byInstrument[f.Instrument]
		if c == nil {
			c = &instrumentCols{close: domain.NaNs(n), ret: domain.NaNs(n), momentum: domain.NaNs(n)}
			byInstrument[f.Instrument] = c
		}
		c.close[row] = value(f.Close)
		c.ret[row] = value(f.Return)
		c.momentum[row] = value(f.Return30d)
	}
	if _, ok := byInstrument[benchmark]; !ok {
		return nil, fmt.Errorf("benchmark %s has no stored features: %w", benchmark, ErrNotFound)
	}

	instruments := make([]string, 0, len(byInstrument))
	for name := range byInstrument {
		if name != benchmark {
			instruments = append(instruments, name)
		}
	}
	sort.Strings(instruments)
	instruments = append([]string{benchmark}, instruments...)

	var cols []domain.Column
	for _, name := range instruments {
		cols = append(cols, domain.Column{Name: domain.CloseColumn(name), Values: byInstrument[name].close})
	}

	column := func(get func(*domain.RiskScoreRecord) *float64) ([]float64, bool) {
		out := make([]float64, n)
		present := false
		for i, s := range scores {
			p := get(s)
			out[i] = value(p)
			present = present || p != nil
		}
		return out, present
	}

	if flow, ok := column(func(s *domain.RiskScoreRecord) *float64 { return s.FIINet }); ok {
		cols = append(cols, domain.Column{Name: flowColumn, Values: flow})
	}
	for _, name := range instruments {
		c := byInstrument[name]
		cols = append(cols,
			domain.Column{Name: domain.ReturnColumn(name), Values: c.ret},
			domain.Column{Name: domain.MomentumColumn(name), Values: c.momentum},
		)
	}

	vol7, _ := column(func(s *domain.RiskScoreRecord) *float64 { return s.Vol7d })
	vol30, _ := column(func(s *domain.RiskScoreRecord) *float64 { return s.Vol30d })
	vol90, _ := column(func(s *domain.RiskScoreRecord) *float64 { return s.Vol90d })
	volZ, _ := column(func(s *domain.RiskScoreRecord) *float64 { return s.VolZ })
	flowZ, _ := column(func(s *domain.RiskScoreRecord) *float64 { return s.FlowZ })
	score, _ := column(func(s *domain.RiskScoreRecord) *float64 { return s.Score })

	labels := make([]string, n)
	for i, s := range scores {
		labels[i] = s.Regime.String()
	}

	cols = append(cols,
		domain.Column{Name: domain.VolColumn(storedVolWindows[0]), Values: vol7},
		domain.Column{Name: domain.VolColumn(storedVolWindows[1]), Values: vol30},
		domain.Column{Name: domain.VolColumn(storedVolWindows[2]), Values: vol90},
		domain.Column{Name: domain.ColumnVolZ, Values: volZ},
		domain.Column{Name: domain.ColumnFlowZ, Values: flowZ},
		domain.Column{Name: domain.ColumnRiskScore, Values: score},
		domain.Column{Name: domain.ColumnRiskRegime, Labels: labels},
	)

	return domain.NewFrame(dates).With(cols...)
}

// at returns values[i] as a nullable pointer; nil slices and NaN give nil.
func at(values []float64, i int) *float64 {
	if values == nil || math.IsNaN(values[i]) {
		return nil
	}
	v := values[i]
	return &v
}

func value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
