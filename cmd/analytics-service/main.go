package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/analytics"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/app"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/broker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	rt, err := app.Start(string(broker.RoleAnalytics))
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.Config, rt.Logger

	transport, err := broker.New(cfg, broker.RoleAnalytics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.Warn("close broker", zap.Error(err))
		}
	}()

	agg := analytics.NewAggregator(cfg.Analytics.ReportPath, cfg.Analytics.FlushEvery, logger)
	logger.Info("counting order events",
		zap.String("report_path", cfg.Analytics.ReportPath),
		zap.Int("flush_every", cfg.Analytics.FlushEvery),
	)

	return rt.Run(func(ctx context.Context) error {
		err := transport.Subscriber.Run(ctx, agg.Handle)
		return errors.Join(err, agg.Close())
	})
}
