package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bitesizeirish/bitesize-cursai/internal/config"
	"github.com/bitesizeirish/bitesize-cursai/internal/database"
	"github.com/bitesizeirish/bitesize-cursai/schemas"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the cache table migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loadConfig() > %w", err)
			}
			if cfg.Cache.Driver != config.CacheDriverMySQL {
				return fmt.Errorf("migrations need the %s cache driver, got %s", config.CacheDriverMySQL, cfg.Cache.Driver)
			}
			return runMigrations(cmd.Context(), cfg, slog.Default())
		},
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := connectDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	version, err := database.Migrate(db, schemas.Migrations, schemas.MigrationsDir)
	if err != nil {
		return fmt.Errorf("database.Migrate() > %w", err)
	}
	logger.InfoContext(ctx, "Database schema is up to date", "version", version)
	return nil
}
