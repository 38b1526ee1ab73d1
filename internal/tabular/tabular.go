// Package tabular reads raw input tables (CSV or Excel) into string grids.
// No typing happens here: date and numeric coercion belong to normalization.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file extensions the reader cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// ErrEmptyTable is returned when a file has no header row.
var ErrEmptyTable = errors.New("table has no header row")

// Table is a raw table with a header row.
// Every row has exactly len(Header) cells.
type Table struct {
	Source string // file path or caller-provided label
	Header []string
	Rows   [][]string
}

// Extensions lists the file extensions ReadFile understands.
var Extensions = []string{".csv", ".xlsx", ".xlsm"}

// ReadFile reads a CSV or Excel file.
func ReadFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f, path)
	case ".xlsx", ".xlsm":
		return readExcel(path)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// ReadCSV reads a CSV stream. Ragged rows are padded or truncated to the header width.
func ReadCSV(r io.Reader, source string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", source, err)
	}
	return build(records, source)
}

// readExcel reads the first sheet that has at least a header row.
// Cells are read unformatted: dates arrive as Excel serials and numbers
// without display formatting.
func readExcel(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s of %s: %w", sheet, path, err)
		}
		if firstNonEmpty(rows) >= 0 {
			return build(rows, path)
		}
	}
	return nil, fmt.Errorf("%s: %w", path, ErrEmptyTable)
}

func build(records [][]string, source string) (*Table, error) {
	start := firstNonEmpty(records)
	if start < 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyTable)
	}

	header := make([]string, len(records[start]))
	for i, h := range records[start] {
		header[i] = cleanHeader(h)
	}

	t := &Table{Source: source, Header: header}
	for _, rec := range records[start+1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// cleanHeader strips a UTF-8 BOM and surrounding whitespace.
func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

func firstNonEmpty(records [][]string) int {
	for i, rec := range records {
		if !blank(rec) {
			return i
		}
	}
	return -1
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
