package pipeline

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// FixtureOptions controls the synthetic input set written by WriteFixtures.
type FixtureOptions struct {
	Start       time.Time
	Days        int      // business days per instrument
	Instruments []string // first entry is the benchmark
	Workbooks   []string // instruments written as .xlsx instead of .csv
	FlowFile    string   // empty = no flow file
}

// DefaultFixtureOptions returns 150 business days of three NIFTY indices
// and an FII/DII flow file.
func DefaultFixtureOptions() FixtureOptions {
	return FixtureOptions{
		Start:       time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		Days:        150,
		Instruments: []string{"NIFTY_50", "NIFTY_BANK", "NIFTY_IT"},
		Workbooks:   []string{"NIFTY_IT"},
		FlowFile:    "FiiDiiTradingactivity.csv",
	}
}

// WriteFixtures writes deterministic synthetic inputs into dir. The data
// carries the glitches real exports have: a duplicated date, an
// unparseable close, a missing calendar day on non-benchmark series,
// thousands separators and a malformed flow date.
func WriteFixtures(dir string, opts FixtureOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	dates := businessDays(opts.Start, opts.Days)
	for i, name := range opts.Instruments {
		rows := seriesRows(dates, i)
		if contains(opts.Workbooks, name) {
			if err := writeWorkbook(filepath.Join(dir, name+".xlsx"), rows); err != nil {
				return fmt.Errorf("write %s fixture: %w", name, err)
			}
			continue
		}
		if err := writeCSV(filepath.Join(dir, name+".csv"), rows); err != nil {
			return fmt.Errorf("write %s fixture: %w", name, err)
		}
	}

	if opts.FlowFile != "" {
		if err := writeCSV(filepath.Join(dir, opts.FlowFile), flowRows(dates)); err != nil {
			return fmt.Errorf("write flow fixture: %w", err)
		}
	}
	return nil
}

func businessDays(start time.Time, n int) []time.Time {
	dates := make([]time.Time, 0, n)
	for d := start; len(dates) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// seriesRows builds a price table for the k-th instrument. Instrument 0
// is the benchmark and has every date.
func seriesRows(dates []time.Time, k int) [][]string {
	rows := [][]string{{"Date", "Open", "High", "Low", "Close", "Volume"}}
	phase := float64(k) * 1.3
	price := 10000.0 * float64(k+1)
	for t, d := range dates {
		r := 0.011*math.Sin(0.7*float64(t)+phase) + 0.006*math.Cos(0.23*float64(t)+phase) + 0.0004
		price *= 1 + r
		if k > 0 && t%17 == 5 {
			continue // holiday in this export only
		}
		closeCell := strconv.FormatFloat(price, 'f', 2, 64)
		if k > 0 && t == 40 {
			closeCell = "n/a"
		}
		row := []string{
			d.Format("2006-01-02"),
			strconv.FormatFloat(price*0.998, 'f', 2, 64),
			strconv.FormatFloat(price*1.004, 'f', 2, 64),
			strconv.FormatFloat(price*0.994, 'f', 2, 64),
			closeCell,
			strconv.Itoa(100000 + 137*t),
		}
		rows = append(rows, row)
		if k > 0 && t == 60 {
			rows = append(rows, row) // duplicated export row
		}
	}
	return rows
}

// flowRows builds a day-first FII/DII table in crores with thousands separators.
func flowRows(dates []time.Time) [][]string {
	rows := [][]string{{"Date", "FII Gross Purchase", "FII Gross Sales", "DII Gross Purchase", "DII Gross Sales"}}
	for t, d := range dates {
		ft := float64(t)
		rows = append(rows, []string{
			d.Format("02-01-2006"),
			thousands(9000 + 2500*math.Sin(0.5*ft)),
			thousands(9000 + 2500*math.Cos(0.31*ft)),
			thousands(7000 + 1800*math.Cos(0.5*ft)),
			thousands(7000 + 1800*math.Sin(0.27*ft)),
		})
		if t == 10 {
			rows = append(rows, []string{"not a date", "1", "2", "3", "4"})
		}
	}
	return rows
}

// thousands formats v with two decimals and comma grouping, e.g. 12,345.67.
func thousands(v float64) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	var sb strings.Builder
	if v < 0 {
		sb.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	sb.WriteByte('.')
	sb.WriteString(frac)
	return sb.String()
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeWorkbook(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			if n, err := strconv.ParseFloat(v, 64); err == nil && i > 0 && j > 0 {
				values[j] = n
			} else {
				values[j] = v
			}
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
