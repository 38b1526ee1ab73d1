package normalization

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/schema"
	"market-risk-lab/internal/tabular"
)

// SkippedInput is an input file that contributed nothing.
type SkippedInput struct {
	Name   string // instrument name or file path
	Path   string
	Reason error
}

// SeriesBatch is the result of loading every instrument file in a directory.
type SeriesBatch struct {
	Series  []*domain.Series // sorted by name
	Stats   map[string]LoadStats
	Skipped []SkippedInput
	Report  schema.Report
}

// Get returns the series with the given name, or nil.
func (b *SeriesBatch) Get(name string) *domain.Series {
	for _, s := range b.Series {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FlowResult is the outcome of loading the flow file.
type FlowResult struct {
	Table  *domain.FlowTable
	Stats  LoadStats
	Report schema.Report
}

// DiscoverSeries lists instrument files in dir whose base name (extension
// excluded) matches pattern. Names map to paths; when an instrument exists
// in several formats, the first extension in tabular.Extensions wins.
func DiscoverSeries(dir, pattern string) (map[string]string, []SkippedInput, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, nil, fmt.Errorf("invalid series pattern %q: %w", pattern, err)
	}

	found := make(map[string]string)
	var shadowed []SkippedInput
	for _, ext := range tabular.Extensions {
		matches, err := filepath.Glob(filepath.Join(dir, pattern+ext))
		if err != nil {
			return nil, nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		sort.Strings(matches)
		for _, path := range matches {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if existing, ok := found[name]; ok {
				shadowed = append(shadowed, SkippedInput{
					Name:   name,
					Path:   path,
					Reason: fmt.Errorf("shadowed by %s", filepath.Base(existing)),
				})
				continue
			}
			found[name] = path
		}
	}
	return found, shadowed, nil
}

// LoadSeriesDir loads every instrument file in dir matching pattern.
// Unreadable files and tables without a close column are skipped and
// reported; only a cancelled context or a bad pattern fails the call.
func (r *Runner) LoadSeriesDir(ctx context.Context, dir, pattern string) (*SeriesBatch, error) {
	files, shadowed, err := DiscoverSeries(dir, pattern)
	if err != nil {
		return nil, err
	}

	batch := &SeriesBatch{
		Stats:   make(map[string]LoadStats, len(files)),
		Skipped: shadowed,
	}
	for _, s := range shadowed {
		r.log.Warn().Str("instrument", s.Name).Str("path", s.Path).Err(s.Reason).Msg("instrument file skipped")
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	r.log.Info().Str("dir", dir).Str("pattern", pattern).Int("files", len(names)).Msg("discovered instrument files")

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := files[name]
		series, stats, report, err := r.loadSeriesFile(path, name)
		batch.Report.Merge(report)
		if err != nil {
			batch.Skipped = append(batch.Skipped, SkippedInput{Name: name, Path: path, Reason: err})
			r.log.Warn().Str("instrument", name).Str("path", path).Err(err).Msg("instrument skipped")
			continue
		}

		batch.Series = append(batch.Series, series)
		batch.Stats[name] = stats
		r.log.Info().
			Str("instrument", name).
			Int("rows", stats.Rows).
			Int("kept", stats.Kept).
			Int("invalid_dates", stats.InvalidDates).
			Int("duplicate_dates", stats.DuplicateDates).
			Int("invalid_values", stats.InvalidValues).
			Msg("instrument loaded")
	}

	for _, issue := range batch.Report.Issues {
		r.log.Warn().Str("source", issue.Source).Str("field", issue.Field).Str("kind", string(issue.Kind)).Msg(issue.String())
	}

	return batch, nil
}

func (r *Runner) loadSeriesFile(path, name string) (*domain.Series, LoadStats, schema.Report, error) {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return nil, LoadStats{}, schema.Report{}, err
	}
	return LoadSeries(table, name, SeriesOptions{
		Mapping:  r.seriesMapping(name),
		DayFirst: r.seriesDayFirst,
	})
}

// LoadFlowFile reads and normalizes the flow file at path.
func (r *Runner) LoadFlowFile(ctx context.Context, path string) (*FlowResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}

	flow, stats, report, err := NormalizeFlow(table, r.flowOpts)
	for _, issue := range report.Issues {
		r.log.Warn().Str("source", issue.Source).Str("field", issue.Field).Str("kind", string(issue.Kind)).Msg(issue.String())
	}
	if err != nil {
		return nil, err
	}

	if flow.Empty() {
		r.log.Warn().Str("path", path).Msg("flow file has no FII/DII columns")
	} else {
		fields := make([]string, len(flow.Fields))
		for i, f := range flow.Fields {
			fields[i] = f.String()
		}
		r.log.Info().
			Str("path", path).
			Strs("fields", fields).
			Int("rows", stats.Rows).
			Int("kept", stats.Kept).
			Int("invalid_dates", stats.InvalidDates).
			Int("duplicate_dates", stats.DuplicateDates).
			Int("invalid_values", stats.InvalidValues).
			Msg("flow table normalized")
	}

	return &FlowResult{Table: flow, Stats: stats, Report: report}, nil
}
