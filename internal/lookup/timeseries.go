package lookup

import (
	"errors"
	"math"
	"time"
)

// Errors returned by lookup functions.
var (
	ErrNoData      = errors.New("no data available")
	ErrBeforeStart = errors.New("target precedes first defined value")
)

// IndexAt returns the index of the last row dated at or before target whose
// value is defined (not NaN). dates must be ascending.
// Returns ErrNoData if no row carries a defined value, and ErrBeforeStart
// if defined values exist only after target.
func IndexAt(target time.Time, dates []time.Time, values []float64) (int, error) {
	found := false
	for i := len(dates) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			continue
		}
		found = true
		if !dates[i].After(target) {
			return i, nil
		}
	}
	if !found {
		return -1, ErrNoData
	}
	return -1, ErrBeforeStart
}

// Latest returns the index of the last defined value.
func Latest(dates []time.Time, values []float64) (int, error) {
	if len(dates) == 0 {
		return -1, ErrNoData
	}
	return IndexAt(dates[len(dates)-1], dates, values)
}
