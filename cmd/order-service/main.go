package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/app"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/broker"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/db"
	httpapi "github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/order"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	rt, err := app.Start(string(broker.RoleOrder))
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.Config, rt.Logger

	store, closeStore, err := newStore(context.Background(), cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	transport, err := broker.New(cfg, broker.RoleOrder, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.Warn("close broker", zap.Error(err))
		}
	}()

	svc := order.NewService(store, transport.Publisher, logger)
	updater := order.NewStatusUpdater(store, logger)

	srv := &http.Server{
		Addr:              cfg.HTTP.AddrOr(":8080"),
		Handler:           httpapi.NewOrderRouter(httpapi.NewOrderHandler(svc, logger), logger, cfg.HTTP.CORSOrigins),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	return rt.Run(
		func(ctx context.Context) error { return transport.Subscriber.Run(ctx, updater.Handle) },
		func(ctx context.Context) error { return httpapi.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout, logger) },
	)
}

func newStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (order.Store, func(), error) {
	if cfg.Kind != config.StorePostgres {
		logger.Info("using in-memory order store")
		return order.NewMemoryStore(), func() {}, nil
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, cfg.DatabaseDSN, logger); err != nil {
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	logger.Info("using postgres order store", zap.Int("cache_size", cfg.CacheSize))

	store := order.NewCachedStore(order.NewPostgresStore(pool), cfg.CacheSize, cfg.CacheTTL)
	return store, pool.Close, nil
}
