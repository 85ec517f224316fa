package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sandbox serves the books api locally so the demo can run offline.
type Sandbox struct {
	logger   *zap.Logger
	config   *Config
	server   *http.Server
	backends *Backends
}

// NewSandboxHandler builds the sandbox router wrapped with the request timeout.
func NewSandboxHandler(logger *zap.Logger, config *Config, clock Clocker, bs BookServiceProvider) http.Handler {
	stats := &Statistics{version: config.GitTag, started: clock.Now()}
	// Use git commit in case the tag is not set.
	if stats.version == "" {
		stats.version = config.GitCommit
	}
	api := NewAPIHandler(logger, config, stats, clock, NewIDsHandler(), NewMetrics(), bs)
	router := api.SetupRoutes(httprouter.New(), api.MiddlewaresStack())
	if config.Sandbox.Server.RequestTimeout <= 0 {
		return router
	}
	// Wrap the router with the default http timeout handler.
	return http.TimeoutHandler(
		router,
		config.Sandbox.Server.RequestTimeout,
		"Timeout. Processing taking too long.")
}

// NewSandbox connects the storage and builds the api server definition.
func NewSandbox(ctx context.Context, logger *zap.Logger, config *Config) (*Sandbox, error) {
	backends, err := SetupBackends(ctx, logger, &config.Sandbox)
	if err != nil {
		return nil, err
	}
	bookService := NewBookService(logger, backends.Books, backends.Queue)
	handler := NewSandboxHandler(logger, config, NewClock(config.IsProduction), bookService)

	srv := &http.Server{
		Addr:           net.JoinHostPort(config.Sandbox.Server.Host, config.Sandbox.Server.Port),
		Handler:        handler,
		ReadTimeout:    config.Sandbox.Server.ReadTimeout,
		WriteTimeout:   config.Sandbox.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
	}
	return &Sandbox{logger: logger, config: config, server: srv, backends: backends}, nil
}

// Run starts the api web server, the queue consumers and a goroutine which
// is responsible to stop the server once ctx is done or any of them failed.
func (sb *Sandbox) Run(ctx context.Context) error {
	defer func() {
		if err := sb.backends.Close(); err != nil {
			sb.logger.Error("failed to close storage", zap.Error(err))
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)
	for _, consume := range sb.backends.Consumers {
		consume := consume
		g.Go(func() error { return consume(gCtx) })
	}
	g.Go(sb.Serve())
	g.Go(sb.Stop(ctx, gCtx))

	err := g.Wait()
	sb.logger.Info("sandbox server stopped",
		zap.String("app.host", sb.config.Sandbox.Server.Host),
		zap.String("app.port", sb.config.Sandbox.Server.Port),
		zap.Error(err),
	)
	return err
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (sb *Sandbox) Serve() func() error {
	return func() error {
		sb.logger.Info("sandbox server starting",
			zap.String("app.host", sb.config.Sandbox.Server.Host),
			zap.String("app.port", sb.config.Sandbox.Server.Port),
			zap.String("app.storage", sb.config.Sandbox.Storage),
		)
		err := sb.server.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		if err != nil {
			return fmt.Errorf("sandbox server: %w", err)
		}
		return nil
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (sb *Sandbox) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			sb.logger.Info("sandbox server stopping. reason: requested to stop")
		} else {
			sb.logger.Info("sandbox server stopping. reason: errored at running")
		}

		timeout := sb.config.Sandbox.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		sCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := sb.server.Shutdown(sCtx)
		switch err {
		case nil, http.ErrServerClosed:
			sb.logger.Info("sandbox server graceful shutdown succeeded")
		case context.DeadlineExceeded:
			sb.logger.Info("sandbox server graceful shutdown timed out")
		default:
			sb.logger.Info("sandbox server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && err != http.ErrServerClosed {
			sb.logger.Info("sandbox server going to force shutdown", zap.Error(sb.server.Close()))
		}
		return nil
	}
}
