package main

import (
	"log/slog"

	"github.com/bitesizeirish/bitesize-cursai/internal/admin"
	"github.com/bitesizeirish/bitesize-cursai/internal/cache"
	"github.com/bitesizeirish/bitesize-cursai/internal/config"
	"github.com/bitesizeirish/bitesize-cursai/internal/server"
	"github.com/bitesizeirish/bitesize-cursai/internal/sound"
)

// serviceSet hands out one sound.Service per request to each HTTP surface.
type serviceSet struct {
	public  func() server.SoundService
	console admin.ServiceFactory
}

func newServices(cfg *config.Config, store cache.Store, logger *slog.Logger) serviceSet {
	factory := sound.NewFactory(store, newSoundClient(cfg.API, logger), logger)
	return serviceSet{
		public:  func() server.SoundService { return factory.New() },
		console: func() admin.Service { return factory.New() },
	}
}
