package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"market-risk-lab/internal/config"
	"market-risk-lab/internal/storage"
	chstore "market-risk-lab/internal/storage/clickhouse"
	"market-risk-lab/internal/storage/migrations"
	pgstore "market-risk-lab/internal/storage/postgres"
	sqlitestore "market-risk-lab/internal/storage/sqlite"
)

// Sink names.
const (
	SinkPostgres   = "postgres"
	SinkClickhouse = "clickhouse"
	SinkSQLite     = "sqlite"
)

var (
	// ErrUnknownSink is returned for a sink name other than the supported ones.
	ErrUnknownSink = errors.New("unknown sink")

	// ErrSinkNotConfigured is returned when the sink has no DSN or path.
	ErrSinkNotConfigured = errors.New("sink not configured")
)

// ConfiguredSinks returns the names of sinks with a DSN or path, in a fixed order.
func ConfiguredSinks(cfg config.SinksConfig) []string {
	var names []string
	if cfg.PostgresDSN != "" {
		names = append(names, SinkPostgres)
	}
	if cfg.ClickhouseDSN != "" {
		names = append(names, SinkClickhouse)
	}
	if cfg.SQLitePath != "" {
		names = append(names, SinkSQLite)
	}
	return names
}

// OpenSink connects to the named sink and applies its migrations.
func OpenSink(ctx context.Context, cfg config.SinksConfig, name string) (storage.Sink, error) {
	switch name {
	case SinkPostgres:
		if cfg.PostgresDSN == "" {
			return storage.Sink{}, fmt.Errorf("%w: %s", ErrSinkNotConfigured, name)
		}
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return storage.Sink{}, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return storage.Sink{}, fmt.Errorf("postgres migrations: %w", err)
		}
		return storage.Sink{
			Name:     name,
			Features: pgstore.NewInstrumentFeatureStore(pool),
			Scores:   pgstore.NewRiskScoreStore(pool),
			Close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case SinkClickhouse:
		if cfg.ClickhouseDSN == "" {
			return storage.Sink{}, fmt.Errorf("%w: %s", ErrSinkNotConfigured, name)
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return storage.Sink{}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return storage.Sink{
			Name:     name,
			Features: chstore.NewInstrumentFeatureStore(conn),
			Scores:   chstore.NewRiskScoreStore(conn),
			Close:    conn.Close,
		}, nil

	case SinkSQLite:
		if cfg.SQLitePath == "" {
			return storage.Sink{}, fmt.Errorf("%w: %s", ErrSinkNotConfigured, name)
		}
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return storage.Sink{}, err
		}
		return storage.Sink{
			Name:     name,
			Features: sqlitestore.NewInstrumentFeatureStore(db),
			Scores:   sqlitestore.NewRiskScoreStore(db),
			Close:    db.Close,
		}, nil
	}

	return storage.Sink{}, fmt.Errorf("%w: %q", ErrUnknownSink, name)
}

// OpenSinks opens every configured sink. Sinks that fail to open are
// reported in errs and left out of the returned slice.
func OpenSinks(ctx context.Context, cfg config.SinksConfig, log zerolog.Logger) (sinks []storage.Sink, errs []error) {
	for _, name := range ConfiguredSinks(cfg) {
		sink, err := OpenSink(ctx, cfg, name)
		if err != nil {
			log.Warn().Str("sink", name).Err(err).Msg("sink unavailable")
			errs = append(errs, fmt.Errorf("sink %s: %w", name, err))
			continue
		}
		log.Info().Str("sink", name).Msg("sink opened")
		sinks = append(sinks, sink)
	}
	return sinks, errs
}

// CloseSinks closes every sink, logging failures.
func CloseSinks(sinks []storage.Sink, log zerolog.Logger) {
	for _, s := range sinks {
		if s.Close == nil {
			continue
		}
		if err := s.Close(); err != nil {
			log.Warn().Str("sink", s.Name).Err(err).Msg("failed to close sink")
		}
	}
}
