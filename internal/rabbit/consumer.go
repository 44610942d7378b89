package rabbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// Consumer runs a single-threaded receive loop over one queue. Startup
// connection failures are returned to the caller; a connection lost later
// is re-established forever, re-declaring the topology each time.
type Consumer struct {
	connector      *Connector
	topology       Topology
	queue          string
	tag            string
	prefetch       int
	reconnectDelay time.Duration
	logger         *zap.Logger
}

type ConsumerOptions struct {
	Queue          string
	Tag            string
	Prefetch       int
	ReconnectDelay time.Duration
}

func NewConsumer(connector *Connector, topology Topology, opts ConsumerOptions, logger *zap.Logger) *Consumer {
	return &Consumer{
		connector:      connector,
		topology:       topology,
		queue:          opts.Queue,
		tag:            opts.Tag,
		prefetch:       max(opts.Prefetch, 1),
		reconnectDelay: opts.ReconnectDelay,
		logger:         logger.With(zap.String("queue", opts.Queue)),
	}
}

func (c *Consumer) Run(ctx context.Context, handler events.HandlerFunc) error {
	conn, err := c.connector.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		err := c.consume(ctx, conn, handler)
		_ = conn.Close()
		if ctx.Err() != nil {
			c.logger.Info("stopping consumer")
			return nil
		}
		c.logger.Warn("lost connection to rabbitmq, reconnecting",
			zap.Duration("delay", c.reconnectDelay), zap.Error(err))

		conn, err = c.reconnect(ctx)
		if err != nil {
			return nil
		}
	}
}

// reconnect only returns an error when ctx is cancelled.
func (c *Consumer) reconnect(ctx context.Context) (Connection, error) {
	for {
		if err := sleep(ctx, c.reconnectDelay); err != nil {
			return nil, err
		}
		conn, err := c.connector.Connect(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("reconnect failed, will keep trying", zap.Error(err))
	}
}

func (c *Consumer) consume(ctx context.Context, conn Connection, handler events.HandlerFunc) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := c.topology.Ensure(ch); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info("waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-connClosed:
			return closeError("connection", amqpErr)
		case amqpErr := <-chClosed:
			return closeError("channel", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.dispatch(ctx, d, handler)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handler events.HandlerFunc) {
	msg := events.Message{Key: d.MessageId, Body: d.Body, Headers: fromTable(d.Headers)}

	if err := handler(ctx, msg); err != nil {
		c.logger.Warn("handler failed, requeueing", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
		if err := d.Nack(false, true); err != nil {
			c.logger.Error("nack failed", zap.Error(err))
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
	}
}

func closeError(what string, amqpErr *amqp.Error) error {
	if amqpErr == nil {
		return fmt.Errorf("%s closed", what)
	}
	return fmt.Errorf("%s closed: %w", what, amqpErr)
}
