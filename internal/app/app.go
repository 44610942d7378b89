// Package app holds the process bootstrap shared by the service binaries.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

const flushTimeout = 5 * time.Second

type Runtime struct {
	Config config.Config
	Logger *zap.Logger

	shutdownTracing func(context.Context) error
}

// Start loads configuration (the -config flag, falling back to CONFIG_PATH),
// builds the logger and installs tracing for service.
func Start(service string) (*Runtime, error) {
	path := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Env, service)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdown, err := observability.Setup(context.Background(), observability.TracingConfig{
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	}, service)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	logger.Info("starting", zap.String("env", cfg.Env), zap.String("broker", cfg.Broker))
	return &Runtime{Config: cfg, Logger: logger, shutdownTracing: shutdown}, nil
}

// Run executes every task until one fails or SIGINT/SIGTERM arrives, then
// waits for all of them to return.
func (r *Runtime) Run(tasks ...func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error { return task(ctx) })
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		r.Logger.Error("service stopped", zap.Error(err))
		return err
	}
	r.Logger.Info("shutdown complete")
	return nil
}

func (r *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := r.shutdownTracing(ctx); err != nil {
		r.Logger.Warn("flush traces", zap.Error(err))
	}
	_ = r.Logger.Sync()
}
