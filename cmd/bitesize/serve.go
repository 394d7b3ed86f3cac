package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/bitesizeirish/bitesize-cursai/internal/admin"
	"github.com/bitesizeirish/bitesize-cursai/internal/block"
	"github.com/bitesizeirish/bitesize-cursai/internal/bootstrap"
	"github.com/bitesizeirish/bitesize-cursai/internal/config"
	"github.com/bitesizeirish/bitesize-cursai/internal/server"
)

var requiredSettings = []string{
	"BITESIZE_API_URL",
	"BITESIZE_API_KEY",
	"BITESIZE_API_CLIENT_NAME",
}

func newServeCommand() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sound endpoints and the cache console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply database migrations before serving")
	return cmd
}

func serve(ctx context.Context, migrateFirst bool) error {
	logger := slog.Default()
	app := bootstrap.New(bootstrap.WithLogger(logger))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}
	if migrateFirst && cfg.Cache.Driver == config.CacheDriverMySQL {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("openStore() > %w", err)
	}
	app.AddShutdownHook("store", func(context.Context) error {
		return closeStore()
	})

	srv := server.NewHTTPServer(cfg.Server.Port, newServerHandler(cfg, newServices(cfg, store, logger), logger))
	app.AddShutdownHook("http", srv.Shutdown)

	return app.Run(ctx, func(ctx context.Context) error {
		logger.InfoContext(ctx, "Starting server", "addr", srv.Addr, "cache_driver", cfg.Cache.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("srv.ListenAndServe() > %w", err)
		}
		return nil
	})
}

func newServerHandler(cfg *config.Config, services serviceSet, logger *slog.Logger) http.Handler {
	console := admin.NewHandler(services.console, admin.Options{
		Username:         cfg.Admin.Username,
		Password:         cfg.Admin.Password,
		APIConfigured:    cfg.API.Configured(),
		RequiredSettings: requiredSettings,
		CacheDriver:      cfg.Cache.Driver,
		Nonces:           admin.NewNonces(cfg.Admin.NonceSecret, nil),
		Logger:           logger,
	})
	if cfg.Admin.Password == "" {
		logger.Warn("No admin password configured, the cache console is read-only")
	}

	renderer := block.NewRenderer(block.WithLogger(logger))
	return server.NewHandler(services.public, renderer, console, logger)
}
