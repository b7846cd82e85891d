package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/database/mariadb"
	"github.com/kozaktomas/photo-report/internal/database/postgres"
	"github.com/kozaktomas/photo-report/internal/logging"
	"github.com/kozaktomas/photo-report/internal/transcode"
)

// openBackends connects the configured record stores and registers them.
// The returned func closes every opened pool.
func openBackends(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (func(), error) {
	if cfg.Database.URL == "" && cfg.Legacy.DSN == "" {
		return nil, errors.New("DATABASE_URL or MARIADB_DSN environment variable is required")
	}

	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Database.URL != "" {
		log.Info("Connecting to PostgreSQL database")
		repo, err := postgres.Initialize(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		database.RegisterPostgresBackend(func() database.RecordWriter { return repo })
		closers = append(closers, func() { _ = repo.Close() })
	}

	if cfg.Legacy.DSN != "" {
		log.Info("Connecting to legacy MariaDB database")
		pool, err := mariadb.NewPool(cfg.Legacy.DSN)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to connect to MariaDB: %w", err)
		}
		repo := mariadb.NewRecordRepository(pool)
		database.RegisterLegacyBackend(func() database.RecordWriter { return repo })
		closers = append(closers, func() { _ = pool.Close() })
	}

	log.WithField("backend", database.BackendName()).Info("Record store ready")
	return closeAll, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *logrus.Logger {
	return logging.New(cfg.Log, nil)
}

// newTranscoder builds the image transcoder from config.
func newTranscoder(cfg *config.Config, log logrus.FieldLogger) *transcode.Transcoder {
	return transcode.New(transcode.Options{
		MaxDimension: cfg.Transcode.MaxDimension,
		Quality:      cfg.Transcode.Quality,
		Timeout:      cfg.Transcode.Timeout,
		MaxBytes:     cfg.Transcode.MaxBytes,
		MaxPixels:    cfg.Transcode.MaxPixels,
	}, nil, log)
}
