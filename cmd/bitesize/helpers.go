package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bitesizeirish/bitesize-cursai/internal/cache"
	"github.com/bitesizeirish/bitesize-cursai/internal/config"
	"github.com/bitesizeirish/bitesize-cursai/internal/database"
	"github.com/bitesizeirish/bitesize-cursai/internal/sound"
)

const connectRetryDelay = time.Second

// soundHTTPClient overrides the transport of the Sounds API client when set.
var soundHTTPClient *http.Client

// openStore returns the persistent store selected by the configuration and
// a function releasing it.
var openStore = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Store, func() error, error) {
	if cfg.Cache.Driver == config.CacheDriverMemory {
		return cache.NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := connectDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewMySQLStore(db), db.Close, nil
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("database.Open() > %w", err)
	}
	if err := database.WaitReady(ctx, db, cfg.ConnectAttempts, connectRetryDelay, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database.WaitReady() > %w", err)
	}
	return db, nil
}

func newSoundClient(cfg config.APIConfig, logger *slog.Logger) *sound.Client {
	opts := []sound.ClientOption{sound.WithLogger(logger)}
	if soundHTTPClient != nil {
		opts = append(opts, sound.WithHTTPClient(soundHTTPClient))
	}
	return sound.NewClient(sound.APIConfig{
		URL:        cfg.URL,
		Key:        cfg.Key,
		ClientName: cfg.ClientName,
	}, opts...)
}

// environment is what every command needs once the configuration is loaded.
type environment struct {
	cfg     *config.Config
	factory *sound.Factory
	close   func() error
}

func newEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loadConfig() > %w", err)
	}

	logger := slog.Default()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("openStore() > %w", err)
	}
	return &environment{
		cfg:     cfg,
		factory: sound.NewFactory(store, newSoundClient(cfg.API, logger), logger),
		close:   closeStore,
	}, nil
}
