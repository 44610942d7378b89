package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/app"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/broker"
	httpapi "github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	rt, err := app.Start(string(broker.RoleInventory))
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.Config, rt.Logger

	engine, err := inventory.NewEngine(cfg.Inventory.Stock)
	if err != nil {
		return fmt.Errorf("seed inventory: %w", err)
	}
	logger.Info("inventory seeded", zap.Any("stock", engine.Snapshot()))

	transport, err := broker.New(cfg, broker.RoleInventory, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.Warn("close broker", zap.Error(err))
		}
	}()

	handler := pipeline.NewHandler(engine, transport.Publisher, logger)

	srv := &http.Server{
		Addr:              cfg.HTTP.AddrOr(":8081"),
		Handler:           httpapi.NewInventoryRouter(httpapi.NewInventoryHandler(engine), logger, cfg.HTTP.CORSOrigins),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	return rt.Run(
		func(ctx context.Context) error { return transport.Subscriber.Run(ctx, handler.Handle) },
		func(ctx context.Context) error { return httpapi.Serve(ctx, srv, cfg.HTTP.ShutdownTimeout, logger) },
	)
}
