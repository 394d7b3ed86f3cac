// Package bootstrap runs long-lived commands until they finish or the process
// is asked to stop.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultShutdownTimeout bounds the time shutdown hooks get in total.
const DefaultShutdownTimeout = 15 * time.Second

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// App runs a function and tears down registered resources when it is
// interrupted.
type App struct {
	mu              sync.Mutex
	hooks           []hook
	shutdownTimeout time.Duration
	logger          *slog.Logger
	signals         []os.Signal
}

type Option func(*App)

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		a.shutdownTimeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

func New(opts ...Option) *App {
	a := &App{
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddShutdownHook registers fn under name. Hooks run in reverse order of
// registration and may be added from inside the run function.
func (a *App) AddShutdownHook(name string, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook{name: name, fn: fn})
}

// Run calls run with a context that is cancelled on SIGINT or SIGTERM.
// Shutdown hooks run when that context ends, whether or not run has
// returned. An error from run takes precedence over hook errors.
func (a *App) Run(ctx context.Context, run func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, a.signals...)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down", "reason", context.Cause(ctx))
		shutdownErr := a.shutdown()
		if err := <-errCh; err != nil {
			return err
		}
		return shutdownErr
	case err := <-errCh:
		shutdownErr := a.shutdown()
		if err != nil {
			return err
		}
		return shutdownErr
	}
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.mu.Lock()
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(ctx); err != nil {
			a.logger.Error("Shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s > %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
