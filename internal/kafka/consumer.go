package kafka

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

// Consumer commits an offset only after the handler returned nil, so a
// message whose outcome was never produced is fetched again.
type Consumer struct {
	newReader      func() Reader
	ensure         func(ctx context.Context) error
	reconnectDelay time.Duration
	logger         *zap.Logger
}

// NewConsumer takes ensure as the startup check; its error is fatal.
func NewConsumer(newReader func() Reader, ensure func(ctx context.Context) error, reconnectDelay time.Duration, logger *zap.Logger) *Consumer {
	return &Consumer{
		newReader:      newReader,
		ensure:         ensure,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

func (c *Consumer) Run(ctx context.Context, handler events.HandlerFunc) error {
	if c.ensure != nil {
		if err := c.ensure(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.logger.Info("stopping consumer")
			return nil
		}
		c.logger.Warn("kafka reader failed, reconnecting", zap.Duration("delay", c.reconnectDelay), zap.Error(err))
		if sleep(ctx, c.reconnectDelay) != nil {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler events.HandlerFunc) error {
	reader := c.newReader()
	defer func() { _ = reader.Close() }()

	c.logger.Info("waiting for messages")
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		msg := events.Message{Key: string(m.Key), Body: m.Value, Headers: fromHeaders(m.Headers)}
		if err := handler(ctx, msg); err != nil {
			// Reopening the reader rewinds to the last committed offset.
			return err
		}
		if err := reader.CommitMessages(ctx, m); err != nil {
			return err
		}
		c.logger.Debug("committed",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
	}
}

var _ Reader = (*kafkago.Reader)(nil)
var _ Writer = (*kafkago.Writer)(nil)
