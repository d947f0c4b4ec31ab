// Package sink persists output rows. Every sink receives the rows of one
// sub-industry group per Write call, in the fixed output column order.
package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
)

// Sink is an output destination for a run.
type Sink interface {
	Write(ctx context.Context, runID string, rows []models.OutputRow) error
	Close() error
}

// Multi writes to every sink and joins their errors. A failing sink does
// not stop the others.
type Multi []Sink

func (m Multi) Write(ctx context.Context, runID string, rows []models.OutputRow) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, runID, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the sinks configured in cfg. The CSV file is always
// written; PostgreSQL, SQLite and the Redis stream are added when
// configured. Database sinks always append.
func Open(ctx context.Context, cfg config.OutputConfig, logger *slog.Logger) (Multi, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sink")

	var out Multi
	fail := func(err error) (Multi, error) {
		if cerr := out.Close(); cerr != nil {
			logger.Warn("closing sinks after open failure", "error", cerr)
		}
		return nil, err
	}

	c, err := OpenCSV(cfg.File, cfg.Mode)
	if err != nil {
		return fail(err)
	}
	out = append(out, c)
	logger.Info("csv sink ready", "file", cfg.File, "mode", cfg.Mode)

	if cfg.PostgresDSN != "" {
		pg, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return fail(err)
		}
		out = append(out, pg)
		logger.Info("postgres sink ready")
	}
	if cfg.SQLitePath != "" {
		lite, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return fail(err)
		}
		out = append(out, lite)
		logger.Info("sqlite sink ready", "path", cfg.SQLitePath)
	}
	if cfg.RedisAddr != "" {
		rs, err := OpenRedisStream(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.RedisStream,
			MaxLen:   cfg.RedisMaxLen,
		})
		if err != nil {
			return fail(err)
		}
		out = append(out, rs)
		logger.Info("redis stream sink ready", "addr", cfg.RedisAddr, "stream", cfg.RedisStream)
	}
	return out, nil
}

func sinkError(msg string, err error) error {
	return models.NewScrapeError(models.ErrCodeSinkFailure, msg, err)
}
