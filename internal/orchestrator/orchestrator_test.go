package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-risk-lab/internal/config"
	"market-risk-lab/internal/logger"
	"market-risk-lab/internal/observability"
	"market-risk-lab/internal/pipeline"
	"market-risk-lab/internal/storage"
	"market-risk-lab/internal/storage/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dataDir := t.TempDir()
	require.NoError(t, pipeline.WriteFixtures(dataDir, pipeline.DefaultFixtureOptions()))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Inputs.DataDir = dataDir
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func TestConfiguredSinks(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SinksConfig
		want []string
	}{
		{"none", config.SinksConfig{}, nil},
		{"sqlite only", config.SinksConfig{SQLitePath: "x.db"}, []string{SinkSQLite}},
		{"all", config.SinksConfig{PostgresDSN: "pg", ClickhouseDSN: "ch", SQLitePath: "x.db"},
			[]string{SinkPostgres, SinkClickhouse, SinkSQLite}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfiguredSinks(tt.cfg))
		})
	}
}

func TestOpenSink_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := OpenSink(ctx, config.SinksConfig{}, "mongodb")
	assert.True(t, errors.Is(err, ErrUnknownSink))

	_, err = OpenSink(ctx, config.SinksConfig{}, SinkPostgres)
	assert.True(t, errors.Is(err, ErrSinkNotConfigured))
}

func TestOrchestrator_Run_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sinks.SQLitePath = filepath.Join(t.TempDir(), "risk.db")

	run := func() *RunResult {
		result, err := New(Options{Config: cfg, Logger: logger.Nop()}).Run(context.Background())
		require.NoError(t, err)
		return result
	}

	first := run()
	assert.Equal(t, []string{SinkSQLite}, first.Sinks)
	assert.Empty(t, first.SinkErrors)
	stage, ok := first.Pipeline.Stage("sink:sqlite")
	require.True(t, ok)
	assert.True(t, stage.Pass(), stage.Detail)

	second := run()
	assert.Equal(t, first.Pipeline.DatasetID, second.Pipeline.DatasetID)
	stage, _ = second.Pipeline.Stage("sink:sqlite")
	assert.True(t, stage.Pass(), stage.Detail)
	assert.Contains(t, stage.Detail, "already present")

	sink, err := OpenSink(context.Background(), cfg.Sinks, SinkSQLite)
	require.NoError(t, err)
	defer sink.Close()
	ids, err := sink.Scores.ListDatasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{first.Pipeline.DatasetID}, ids)
}

func TestOrchestrator_Run_SinkUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	t.Run("degraded", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sinks.SQLitePath = filepath.Join(blocker, "sub", "risk.db")
		extra := storage.Sink{Name: "memory", Features: memory.NewInstrumentFeatureStore(), Scores: memory.NewRiskScoreStore()}
		m := observability.NewMetrics("test")

		result, err := New(Options{Config: cfg, Logger: logger.Nop(), Sinks: []storage.Sink{extra}, Metrics: m}).
			Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, result.SinkErrors, 1)
		assert.Equal(t, []string{"memory"}, result.Sinks)
		assert.Contains(t, result.Pipeline.Warnings[0], "sink sqlite")

		exists, err := extra.Scores.Exists(context.Background(), result.Pipeline.DatasetID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("required", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sinks.SQLitePath = filepath.Join(blocker, "sub", "risk.db")
		cfg.Sinks.Required = true

		result, err := New(Options{Config: cfg, Logger: logger.Nop()}).Run(context.Background())
		require.Error(t, err)
		assert.Nil(t, result.Pipeline, "pipeline does not start")
	})
}
