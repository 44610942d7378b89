package rabbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
)

var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

type DialFunc func(url string) (Connection, error)

// DialAMQP dials a real broker with the given socket timeout and heartbeat.
func DialAMQP(timeout, heartbeat time.Duration) DialFunc {
	return func(url string) (Connection, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: heartbeat,
			Dial:      amqp.DefaultDial(timeout),
		})
		if err != nil {
			return nil, err
		}
		return amqpConnection{conn}, nil
	}
}

// Connector dials the broker with a fixed number of attempts and a fixed
// delay between them.
type Connector struct {
	URL      string
	Attempts int
	Delay    time.Duration
	Dial     DialFunc

	logger *zap.Logger
}

func NewConnector(cfg config.RabbitMQConfig, logger *zap.Logger) *Connector {
	return &Connector{
		URL:      cfg.AMQPURL(),
		Attempts: cfg.Retries,
		Delay:    cfg.Delay,
		Dial:     DialAMQP(cfg.DialTimeout, cfg.Heartbeat),
		logger:   logger,
	}
}

// WithRetry returns a copy of c using a different retry budget.
func (c *Connector) WithRetry(attempts int, delay time.Duration) *Connector {
	cp := *c
	cp.Attempts = attempts
	cp.Delay = delay
	return &cp
}

// Connect returns ErrBrokerUnavailable once every attempt has failed, or
// ctx.Err() if ctx is cancelled while waiting between attempts.
func (c *Connector) Connect(ctx context.Context) (Connection, error) {
	attempts := max(c.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := c.Dial(c.URL)
		if err == nil {
			c.logger.Info("connected to rabbitmq", zap.Int("attempt", attempt))
			return conn, nil
		}
		lastErr = err
		c.logger.Warn("rabbitmq not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Duration("delay", c.Delay),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, c.Delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrBrokerUnavailable, attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
