package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"casedocs/internal/config"
	"casedocs/internal/database"
	"casedocs/internal/database/migration"
	"casedocs/internal/logging"
)

// migrateFunc runs one migration action against an open database.
type migrateFunc func(ctx context.Context, db *sql.DB, log *slog.Logger, cfg *config.AppConfig) error

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	Timeout  time.Duration
}

// NewRootCommand creates the migrate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the case document schema",
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error); defaults to LOG_LEVEL")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "overall deadline for the command")

	cmd.AddCommand(newActionCommand(opts, "up", "Apply every pending migration",
		func(ctx context.Context, db *sql.DB, log *slog.Logger, cfg *config.AppConfig) error {
			return migration.EnsureMigrated(ctx, db, log, cfg.Database.Host)
		}))
	cmd.AddCommand(newActionCommand(opts, "down", "Roll back the most recent migration",
		func(ctx context.Context, db *sql.DB, log *slog.Logger, _ *config.AppConfig) error {
			return migration.Down(ctx, db, log)
		}))
	cmd.AddCommand(newActionCommand(opts, "status", "Show applied and pending migrations",
		func(ctx context.Context, db *sql.DB, log *slog.Logger, _ *config.AppConfig) error {
			return migration.Status(ctx, db, log)
		}))

	return cmd
}

func newActionCommand(opts *RootOptions, use, short string, fn migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			level := opts.LogLevel
			if level == "" {
				level = cfg.LogLevel
			}
			log := logging.New(os.Stdout, level, cfg.Location()).With("command", "migrate "+use)

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			return fn(ctx, db, log, cfg)
		},
	}
}
