package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrations embed.FS

const dir = "sql"

// setup points goose at the embedded migrations. goose keeps this state
// globally, so every entry point calls it before running.
func setup(log *slog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// EnsureMigrated applies every pending migration and logs each phase.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With("component", "database", "db_host", dbHost)

	log.InfoContext(ctx, "db_migration_start", "status", "in_progress")

	if err := setup(log); err != nil {
		log.ErrorContext(ctx, "db_migration_failed", "status", "error", "error_message", err.Error())
		return err
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		log.ErrorContext(ctx, "db_migration_failed",
			"status", "error",
			"error_message", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	log.InfoContext(ctx, "db_migration_success",
		"status", "success",
		"schema_version", version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	if err := setup(log); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, dir)
}

// Status prints the applied/pending state of every migration through the logger.
func Status(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	if err := setup(log); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, dir)
}

type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...), "component", "goose")
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...), "component", "goose")
}
