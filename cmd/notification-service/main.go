package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/app"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/broker"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/notification"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	rt, err := app.Start(string(broker.RoleNotification))
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.Config, rt.Logger

	transport, err := broker.New(cfg, broker.RoleNotification, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.Warn("close broker", zap.Error(err))
		}
	}()

	notifier := notification.NewNotifier(cfg.Notification.SendDelay, logger)
	logger.Info("waiting for InventoryReserved events")

	return rt.Run(func(ctx context.Context) error {
		return transport.Subscriber.Run(ctx, notifier.Handle)
	})
}
