// Package schema resolves physical input columns to canonical fields.
//
// Resolution order for every field: explicit mapping from configuration,
// then heuristic discovery. Anything the resolver could not settle cleanly
// is recorded in a Report rather than failing the load.
package schema

import (
	"fmt"
	"strings"

	"market-risk-lab/internal/domain"
)

// Origin tells how a column was resolved.
type Origin string

const (
	OriginExplicit  Origin = "explicit"
	OriginHeuristic Origin = "heuristic"
)

// Match is a resolved column.
type Match struct {
	Index  int    // position in the table header
	Name   string // physical column name
	Origin Origin
}

// IssueKind classifies a mapping problem.
type IssueKind string

const (
	IssueMissing        IssueKind = "missing"         // no candidate column
	IssueAmbiguous      IssueKind = "ambiguous"       // several candidates, first taken
	IssueMappedNotFound IssueKind = "mapped_not_found" // explicit mapping names an absent column
)

// Issue is one entry of the validation report.
type Issue struct {
	Source     string // file or instrument
	Field      string // canonical field, e.g. Close or FII_Net
	Kind       IssueKind
	Candidates []string // for ambiguous and mapped_not_found
}

// String renders the issue for logs and the diagnostics report.
func (i Issue) String() string {
	switch i.Kind {
	case IssueAmbiguous:
		return fmt.Sprintf("%s: %s ambiguous, candidates %v, using %q", i.Source, i.Field, i.Candidates, i.Candidates[0])
	case IssueMappedNotFound:
		return fmt.Sprintf("%s: %s mapped to %q which is not in the header", i.Source, i.Field, i.Candidates[0])
	default:
		return fmt.Sprintf("%s: %s not found", i.Source, i.Field)
	}
}

// Report collects mapping issues across sources.
type Report struct {
	Issues []Issue
}

// Add appends issues.
func (r *Report) Add(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
}

// Merge appends another report's issues.
func (r *Report) Merge(other Report) {
	r.Issues = append(r.Issues, other.Issues...)
}

// Filter returns the issues of one kind.
func (r *Report) Filter(kind IssueKind) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

// Empty reports whether every field resolved cleanly.
func (r *Report) Empty() bool {
	return len(r.Issues) == 0
}

// Field names used in reports for price tables.
const (
	FieldDate  = "Date"
	FieldClose = "Close"
)

// SeriesMapping is the explicit mapping for a price table. Empty fields use heuristics.
type SeriesMapping struct {
	Date  string
	Close string
}

// SeriesColumns is the resolved layout of a price table.
type SeriesColumns struct {
	Date  *Match
	Close *Match
}

// ResolveSeries resolves the date and close columns of a price table.
func ResolveSeries(source string, header []string, mapping SeriesMapping) (SeriesColumns, Report) {
	var report Report
	var cols SeriesColumns

	cols.Date = resolve(source, FieldDate, header, mapping.Date, &report, dateCandidates)
	cols.Close = resolve(source, FieldClose, header, mapping.Close, &report, closeCandidates)

	return cols, report
}

// FlowColumns is the resolved layout of a flow table.
type FlowColumns struct {
	Date   *Match
	Fields map[domain.FlowField]Match
}

// ResolveFlow resolves the date column and every canonical flow field.
// Fields without any candidate are silently absent: a flow file may carry
// any subset, and Net is derived downstream when possible.
func ResolveFlow(source string, header []string, dateColumn string, mapping map[domain.FlowField]string) (FlowColumns, Report) {
	var report Report
	cols := FlowColumns{Fields: make(map[domain.FlowField]Match)}

	cols.Date = resolve(source, FieldDate, header, dateColumn, &report, dateCandidates)

	for _, field := range domain.FlowFields {
		var fieldReport Report
		m := resolve(source, field.String(), header, mapping[field], &fieldReport, func(h []string) []int {
			return flowCandidates(h, field)
		})
		for _, issue := range fieldReport.Issues {
			if issue.Kind != IssueMissing {
				report.Add(issue)
			}
		}
		if m != nil {
			cols.Fields[field] = *m
		}
	}

	return cols, report
}

// resolve applies the explicit mapping, falling back to candidates.
func resolve(source, field string, header []string, explicit string, report *Report, candidates func([]string) []int) *Match {
	if explicit != "" {
		for i, h := range header {
			if h == explicit {
				return &Match{Index: i, Name: h, Origin: OriginExplicit}
			}
		}
		// Case-insensitive second chance before declaring the mapping broken
		for i, h := range header {
			if strings.EqualFold(h, explicit) {
				return &Match{Index: i, Name: h, Origin: OriginExplicit}
			}
		}
		report.Add(Issue{Source: source, Field: field, Kind: IssueMappedNotFound, Candidates: []string{explicit}})
	}

	idx := candidates(header)
	switch len(idx) {
	case 0:
		report.Add(Issue{Source: source, Field: field, Kind: IssueMissing})
		return nil
	case 1:
	default:
		names := make([]string, len(idx))
		for i, j := range idx {
			names[i] = header[j]
		}
		report.Add(Issue{Source: source, Field: field, Kind: IssueAmbiguous, Candidates: names})
	}
	return &Match{Index: idx[0], Name: header[idx[0]], Origin: OriginHeuristic}
}

// dateCandidates: exact "Date" wins, else any column containing "date".
func dateCandidates(header []string) []int {
	for i, h := range header {
		if h == "Date" {
			return []int{i}
		}
	}
	return containing(header, "date")
}

// closeCandidates: exact "Adj Close", then exact "Close", then any column containing "close".
func closeCandidates(header []string) []int {
	for _, exact := range []string{"Adj Close", "Close"} {
		for i, h := range header {
			if h == exact {
				return []int{i}
			}
		}
	}
	return containing(header, "close")
}

func containing(header []string, token string) []int {
	var out []int
	for i, h := range header {
		if strings.Contains(strings.ToLower(h), token) {
			out = append(out, i)
		}
	}
	return out
}

// Synonym tokens for heuristic flow discovery, lower-case.
var (
	investorTokens = map[string][]string{
		"FII": {"fii", "fpi"},
		"DII": {"dii"},
	}
	sideTokens = map[string][]string{
		"Buy":  {"buy", "purchase"},
		"Sell": {"sell", "sale"}, // "sale" also covers "sales"
		"Net":  {"net"},
	}
)

// flowCandidates returns header columns that look like the given flow field.
// A column mentioning Net never counts as Buy or Sell.
func flowCandidates(header []string, field domain.FlowField) []int {
	investor, side, _ := strings.Cut(field.String(), "_")

	var out []int
	for i, h := range header {
		lower := strings.ToLower(h)
		if !containsAny(lower, investorTokens[investor]) {
			continue
		}
		if !containsAny(lower, sideTokens[side]) {
			continue
		}
		if side != "Net" && containsAny(lower, sideTokens["Net"]) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
