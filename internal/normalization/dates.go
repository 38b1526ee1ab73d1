package normalization

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Layouts tried for every date cell, most specific first.
// Single-digit verbs ("2", "1") accept both padded and unpadded values.
var (
	isoLayouts = []string{
		"2006-1-2",
		"2006/1/2",
		"2006-1-2 15:04:05",
		"2006-1-2T15:04:05",
		time.RFC3339,
		"Jan 2, 2006",
		"January 2, 2006",
	}
	dayFirstLayouts = []string{
		"2-1-2006",
		"2/1/2006",
		"2.1.2006",
		"2-Jan-2006",
		"2 Jan 2006",
		"2-January-2006",
		"2 January 2006",
		"2-Jan-06",
		"2-1-06",
		"2/1/06",
	}
	monthFirstLayouts = []string{
		"1/2/2006",
		"1-2-2006",
		"1/2/06",
		"2-Jan-2006",
		"2 Jan 2006",
	}
)

// Excel serial range accepted as dates: 1900-01-01 through 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// ParseDate parses a calendar date. dayFirst selects the interpretation of
// ambiguous numeric dates such as 03/04/2020. Numeric cells in the Excel
// serial range are decoded as Excel dates. The result is UTC midnight.
func ParseDate(s string, dayFirst bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if !(serial >= minExcelSerial && serial <= maxExcelSerial) {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return truncateDay(t), true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	layouts := monthFirstLayouts
	if dayFirst {
		layouts = dayFirstLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
