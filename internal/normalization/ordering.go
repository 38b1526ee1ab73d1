package normalization

import (
	"sort"
	"time"

	"market-risk-lab/internal/domain"
)

// dated is a parsed row awaiting ordering.
type dated[T any] struct {
	date time.Time
	row  int // source row, breaks ties so the first occurrence wins
	val  T
}

// sortAndDedupe orders rows by (date ASC, source row ASC) and keeps the
// first occurrence of every date. Returns the kept values and the number
// of duplicates dropped.
func sortAndDedupe[T any](rows []dated[T]) ([]dated[T], int) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareDated(rows[i], rows[j]) < 0
	})

	kept := rows[:0]
	dropped := 0
	for _, r := range rows {
		if len(kept) > 0 && r.date.Equal(kept[len(kept)-1].date) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}

// compareDated returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareDated[T any](a, b dated[T]) int {
	if !a.date.Equal(b.date) {
		if a.date.Before(b.date) {
			return -1
		}
		return 1
	}
	if a.row != b.row {
		if a.row < b.row {
			return -1
		}
		return 1
	}
	return 0
}

// IsStrictlyIncreasing reports whether points are ordered by date with no duplicates.
func IsStrictlyIncreasing(points []domain.SeriesPoint) bool {
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			return false
		}
	}
	return true
}
