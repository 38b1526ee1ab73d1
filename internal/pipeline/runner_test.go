package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-risk-lab/internal/alignment"
	"market-risk-lab/internal/config"
	"market-risk-lab/internal/domain"
	"market-risk-lab/internal/logger"
	"market-risk-lab/internal/observability"
	"market-risk-lab/internal/storage"
	"market-risk-lab/internal/storage/memory"
)

var fixedClock = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

// testConfig returns the default configuration reading fixtures from
// dataDir and writing into outDir.
func testConfig(t *testing.T, dataDir, outDir string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Inputs.DataDir = dataDir
	cfg.Output.Dir = outDir
	cfg.Output.ParquetFile = "master_market_data_final.parquet"
	require.NoError(t, cfg.Validate())
	return cfg
}

func writeTestFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, WriteFixtures(dir, DefaultFixtureOptions()))
	return dir
}

func memorySink() storage.Sink {
	return storage.Sink{
		Name:     "memory",
		Features: memory.NewInstrumentFeatureStore(),
		Scores:   memory.NewRiskScoreStore(),
	}
}

func TestRunner_Run(t *testing.T) {
	dataDir := writeTestFixtures(t)
	outDir := t.TempDir()
	cfg := testConfig(t, dataDir, outDir)
	sink := memorySink()

	res, err := NewRunner(cfg, logger.Nop()).
		WithSinks(sink).
		WithClock(fixedClock).
		Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.NotEmpty(t, res.DatasetID)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.Degraded())

	var names []string
	for _, s := range res.Stages {
		names = append(names, s.Name)
		assert.True(t, s.Pass(), "stage %s: %s", s.Name, s.Detail)
	}
	assert.Equal(t, []string{
		StageLoadSeries, StageLoadFlow, StageMerge, StageFeatures, StageRisk,
		StageDiagnostics, StageSufficiency, StageWriteOutput, "sink:memory", StageWriteReport,
	}, names)

	for _, name := range []string{
		cfg.Output.FinalFile, cfg.Output.MasterFile, cfg.Output.CleanFlow,
		cfg.Output.ParquetFile, cfg.Diagnostics.ReportFile,
	} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	frame := res.Frame
	assert.Equal(t, 150, frame.Len(), "one row per benchmark date")
	for _, col := range []string{
		"NIFTY_50_Close", "NIFTY_BANK_Close", "NIFTY_IT_Close", "FII_Net", "DII_Net",
		"NIFTY_50_Return", "NIFTY_IT_30dRet", "Vol_7d", "Vol_30d", "Vol_90d",
		domain.ColumnVolZ, domain.ColumnFlowZ, domain.ColumnRiskScore, domain.ColumnRiskRegime,
	} {
		assert.True(t, frame.Has(col), "missing column %s", col)
	}
	assert.False(t, frame.Has(domain.CorrColumn("NIFTY_IT")), "correlations are not persisted by default")

	scores, _ := frame.Float(domain.ColumnRiskScore)
	defined := 0
	for _, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		defined++
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
	}
	assert.Greater(t, defined, 100)

	stored, err := sink.Scores.GetByDataset(context.Background(), res.DatasetID)
	require.NoError(t, err)
	assert.Len(t, stored, frame.Len())

	features, err := sink.Features.GetByDataset(context.Background(), res.DatasetID)
	require.NoError(t, err)
	assert.Len(t, features, 3*frame.Len())

	report, err := os.ReadFile(filepath.Join(outDir, cfg.Diagnostics.ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "| Dataset | "+res.DatasetID+" |")
	assert.Contains(t, string(report), "Generated: 2024-06-01T12:00:00Z")
	assert.Contains(t, string(report), "| write_output | PASS |")
	assert.Contains(t, string(report), "## Data Sufficiency")
}

func TestRunner_Run_Idempotent(t *testing.T) {
	dataDir := writeTestFixtures(t)
	sink := memorySink()

	run := func() (*Result, []byte) {
		cfg := testConfig(t, dataDir, t.TempDir())
		res, err := NewRunner(cfg, logger.Nop()).WithSinks(sink).WithClock(fixedClock).Run(context.Background())
		require.NoError(t, err)
		content, err := os.ReadFile(filepath.Join(cfg.Output.Dir, cfg.Output.FinalFile))
		require.NoError(t, err)
		return res, content
	}

	first, firstContent := run()
	second, secondContent := run()

	assert.Equal(t, firstContent, secondContent, "two runs must produce byte-identical output")
	assert.Equal(t, first.DatasetID, second.DatasetID)
	assert.NotEqual(t, first.RunID, second.RunID)

	stage, ok := second.Stage("sink:memory")
	require.True(t, ok)
	assert.True(t, stage.Pass())
	assert.Contains(t, stage.Detail, "already present")
}

func TestRunner_Run_BenchmarkMissing(t *testing.T) {
	dataDir := writeTestFixtures(t)
	outDir := t.TempDir()
	cfg := testConfig(t, dataDir, outDir)
	cfg.Benchmark = "NIFTY_MIDCAP"

	res, err := NewRunner(cfg, logger.Nop()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBenchmarkMissing))
	assert.True(t, errors.Is(err, alignment.ErrBenchmarkMissing))
	assert.Contains(t, err.Error(), "NIFTY_MIDCAP")

	stage, ok := res.Stage(StageMerge)
	require.True(t, ok)
	assert.Equal(t, observability.StatusFail, stage.Status)
	assert.NoFileExists(t, filepath.Join(outDir, cfg.Output.FinalFile))
	assert.Empty(t, res.DatasetID)
}

func TestRunner_Run_BenchmarkWithoutValidRows(t *testing.T) {
	dataDir := writeTestFixtures(t)
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "NIFTY_50.csv"),
		[]byte("Date,Close\nnot a date,100\n??,101\n"), 0644))
	cfg := testConfig(t, dataDir, outDir)

	res, err := NewRunner(cfg, logger.Nop()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBenchmarkMissing))
	assert.Contains(t, err.Error(), "NIFTY_50")

	stage, ok := res.Stage(StageMerge)
	require.True(t, ok)
	assert.Equal(t, observability.StatusFail, stage.Status)
	assert.NoFileExists(t, filepath.Join(outDir, cfg.Output.FinalFile))
}

func TestRunner_Run_MissingFlowFile(t *testing.T) {
	dataDir := writeTestFixtures(t)
	require.NoError(t, os.Remove(filepath.Join(dataDir, "FiiDiiTradingactivity.csv")))
	cfg := testConfig(t, dataDir, t.TempDir())

	res, err := NewRunner(cfg, logger.Nop()).Run(context.Background())
	require.NoError(t, err)

	stage, ok := res.Stage(StageLoadFlow)
	require.True(t, ok)
	assert.Equal(t, observability.StatusDegraded, stage.Status)
	assert.True(t, res.Degraded())
	assert.NotEmpty(t, res.Warnings)

	assert.False(t, res.Frame.Has("FII_Net"))
	assert.True(t, res.Fitted.Flow.Absent)
	flowZ, _ := res.Frame.Float(domain.ColumnFlowZ)
	for _, z := range flowZ {
		assert.Equal(t, 0.0, z)
	}
}

func TestRunner_Run_SkippedInstrument(t *testing.T) {
	dataDir := writeTestFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "NIFTY_PHARMA.csv"), []byte("Date,Open\n2023-01-02,1\n"), 0o600))
	cfg := testConfig(t, dataDir, t.TempDir())

	res, err := NewRunner(cfg, logger.Nop()).Run(context.Background())
	require.NoError(t, err)

	stage, _ := res.Stage(StageLoadSeries)
	assert.Equal(t, observability.StatusDegraded, stage.Status)
	assert.Equal(t, "3 loaded, 1 skipped", stage.Detail)
	assert.False(t, res.Frame.Has("NIFTY_PHARMA_Close"))
}

func TestRunner_Run_PersistCorrelations(t *testing.T) {
	dataDir := writeTestFixtures(t)
	cfg := testConfig(t, dataDir, t.TempDir())
	cfg.Diagnostics.PersistCorrelations = true

	res, err := NewRunner(cfg, logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Frame.Has(domain.CorrColumn("NIFTY_BANK")))
	assert.True(t, res.Frame.Has(domain.CorrColumn("NIFTY_IT")))
}

// failingStore rejects every call.
type failingStore struct{ err error }

func (s failingStore) InsertBulk(context.Context, []*domain.RiskScoreRecord) error { return s.err }
func (s failingStore) GetByDataset(context.Context, string) ([]*domain.RiskScoreRecord, error) {
	return nil, s.err
}
func (s failingStore) GetByTimeRange(context.Context, string, time.Time, time.Time) ([]*domain.RiskScoreRecord, error) {
	return nil, s.err
}
func (s failingStore) Exists(context.Context, string) (bool, error) { return false, s.err }
func (s failingStore) ListDatasets(context.Context) ([]string, error) { return nil, s.err }

// presentStore claims every dataset exists but holds no rows.
type presentStore struct{ failingStore }

func (presentStore) Exists(context.Context, string) (bool, error) { return true, nil }
func (presentStore) GetByDataset(context.Context, string) ([]*domain.RiskScoreRecord, error) {
	return nil, nil
}

func TestRunner_Run_SinkFailure(t *testing.T) {
	dataDir := writeTestFixtures(t)
	broken := storage.Sink{
		Name:     "broken",
		Features: memory.NewInstrumentFeatureStore(),
		Scores:   failingStore{err: errors.New("connection refused")},
	}

	t.Run("degraded by default", func(t *testing.T) {
		cfg := testConfig(t, dataDir, t.TempDir())
		res, err := NewRunner(cfg, logger.Nop()).WithSinks(broken).Run(context.Background())
		require.NoError(t, err)

		stage, ok := res.Stage("sink:broken")
		require.True(t, ok)
		assert.Equal(t, observability.StatusDegraded, stage.Status)
		assert.Contains(t, stage.Detail, "connection refused")
		_, ok = res.Stage(StageWriteReport)
		assert.True(t, ok, "later stages still run")
	})

	t.Run("fatal when required", func(t *testing.T) {
		cfg := testConfig(t, dataDir, t.TempDir())
		cfg.Sinks.Required = true
		_, err := NewRunner(cfg, logger.Nop()).WithSinks(broken).Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sink broken")
	})

	t.Run("diverged dataset", func(t *testing.T) {
		cfg := testConfig(t, dataDir, t.TempDir())
		stale := storage.Sink{
			Name:     "stale",
			Features: memory.NewInstrumentFeatureStore(),
			Scores:   presentStore{},
		}
		res, err := NewRunner(cfg, logger.Nop()).WithSinks(stale).Run(context.Background())
		require.NoError(t, err)

		stage, _ := res.Stage("sink:stale")
		assert.Equal(t, observability.StatusDegraded, stage.Status)
		assert.Contains(t, stage.Detail, ErrSinkDiverged.Error())
	})
}

func TestRunner_Run_Metrics(t *testing.T) {
	dataDir := writeTestFixtures(t)
	cfg := testConfig(t, dataDir, t.TempDir())
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "market_risk.prom")
	m := observability.NewMetrics("test")

	_, err := NewRunner(cfg, logger.Nop()).WithMetrics(m).WithSinks(memorySink()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues(observability.StatusPass)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InstrumentsLoaded))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.OutputRows))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.SinkRowsTotal.WithLabelValues("memory", "risk_scores")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageOutcomes.WithLabelValues(StageMerge, observability.StatusPass)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues("FiiDiiTradingactivity.csv", "invalid_date")))
	assert.FileExists(t, cfg.Metrics.Textfile)
}

func TestRunner_Run_Cancelled(t *testing.T) {
	dataDir := writeTestFixtures(t)
	cfg := testConfig(t, dataDir, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(cfg, logger.Nop()).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
