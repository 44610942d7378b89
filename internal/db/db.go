package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // Register postgres driver
	"go.uber.org/zap"
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// openDB opens a database connection without pinging.
func openDB(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

// WaitForDB pings db until it answers, giving up after attempts tries.
func WaitForDB(ctx context.Context, db *sql.DB, attempts int, delay time.Duration, logger *zap.Logger) error {
	attempts = max(attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		logger.Warn("postgres not ready, retrying",
			zap.Int("attempt", attempt), zap.Int("attempts", attempts), zap.Error(err))
		if attempt == attempts {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("postgres unavailable after %d attempts: %w", attempts, err)
}
