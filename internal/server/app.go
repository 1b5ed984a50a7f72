// Package server initializes and runs the sqlidentity server: it builds the
// identity policy over the configured database, serves the HTTP API and
// shuts everything down on SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/sqlidentity/internal/logging"
	"github.com/dmitrijs2005/sqlidentity/internal/server/config"
	"github.com/dmitrijs2005/sqlidentity/internal/server/httpapi"
	"github.com/dmitrijs2005/sqlidentity/internal/server/identity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	policy   *identity.Policy
	registry *prometheus.Registry
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFile)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	policy, err := identity.NewBuilder(c.DatabaseURI).
		Variant(c.Variant).
		PoolSize(c.PoolSize).
		ResponseHeader(c.ResponseHeader).
		OperationTimeout(c.OperationTimeout).
		Logger(logger).
		Registerer(registry).
		Finish(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity store init error: %w", err)
	}

	return &App{config: c, logger: logger, policy: policy, registry: registry}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.HTTPAddr, app.logger, app.policy, app.registry)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a signal arrives, then releases the
// identity store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.policy.Close(); err != nil {
		app.logger.Error(ctx, "identity store close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
