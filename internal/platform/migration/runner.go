// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration brings the identity schema (users.account and
// users.refreshtoken) up to date with golang-migrate before the server
// accepts traffic.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Registers the "pgx5" database scheme.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// Registers the "file" source scheme.
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/taibuivan/yomira-identity/internal/platform/config"
)

// pgx5Scheme is the scheme the golang-migrate pgx/v5 driver registers.
const pgx5Scheme = "pgx5://"

/*
RunUp applies every pending migration found under MIGRATION_PATH.

Description: A dirty schema stops startup; it needs an operator to force a
version before the service can run again.

Parameters:
  - cfg: *config.Config (DATABASE_URL, MIGRATION_PATH)
  - logger: *slog.Logger

Returns:
  - error: Initialisation, dirty state or a failed migration
*/
func RunUp(cfg *config.Config, logger *slog.Logger) error {
	sourceURL, err := SourceURL(cfg.MigrationPath)
	if err != nil {
		return err
	}

	migrator, err := migrate.New(sourceURL, DatabaseURL(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if sourceError != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
		}
		if dbError != nil {
			logger.Error("migration_db_close_failed", slog.Any("error", dbError))
		}
	}()

	migrator.Log = &migrateLogger{logger: logger, verbose: cfg.Debug}

	fromVersion, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: schema is dirty at version %d, force a version before restarting", fromVersion)
	}

	logger.Info("migration_started",
		slog.String("source", sourceURL),
		slog.Uint64("schema_version", uint64(fromVersion)),
	)

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migration_schema_current", slog.Uint64("schema_version", uint64(fromVersion)))
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	toVersion, _, _ := migrator.Version()
	logger.Info("migration_applied",
		slog.Uint64("from_version", uint64(fromVersion)),
		slog.Uint64("to_version", uint64(toVersion)),
	)

	return nil
}

// DatabaseURL rewrites a postgres:// or postgresql:// DSN onto the pgx5 scheme.
// Anything else is returned unchanged.
func DatabaseURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return pgx5Scheme + rest
		}
	}
	return dsn
}

// SourceURL turns the migrations directory into an absolute file:// URL.
func SourceURL(path string) (string, error) {
	if path == "" {
		return "", errors.New("migration: MIGRATION_PATH is empty")
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("migration: resolve %q: %w", path, err)
	}
	return "file://" + filepath.ToSlash(absolute), nil
}

// migrateLogger forwards golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug("migration_progress", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
