package rabbit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

type PublisherOptions struct {
	// Timeout bounds a single publish.
	Timeout time.Duration
	// ConnectTimeout bounds the whole (re)connect step, retries included.
	// Zero leaves only the connector's own retry budget.
	ConnectTimeout time.Duration
}

// Publisher publishes persistent JSON messages on the events exchange. It
// connects lazily and replaces its channel once the broker has closed it,
// so a publish after a broker restart goes out on a fresh connection.
type Publisher struct {
	connector *Connector
	topology  Topology
	opts      PublisherOptions
	logger    *zap.Logger

	mu   sync.Mutex
	conn Connection
	ch   Channel
}

func NewPublisher(connector *Connector, topology Topology, opts PublisherOptions, logger *zap.Logger) *Publisher {
	return &Publisher{
		connector: connector,
		topology:  topology,
		opts:      opts,
		logger:    logger,
	}
}

func (p *Publisher) Publish(ctx context.Context, route events.Route, msg events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	exchange, key := p.topology.Exchange, string(route)
	if route == events.RouteDeadLetter {
		exchange, key = "", DeadLetterQueue
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Key,
		Timestamp:    time.Now().UTC(),
		Headers:      toTable(msg.Headers),
		Body:         msg.Body,
	}

	err := p.publishLocked(ctx, exchange, key, publishing)
	if errors.Is(err, amqp.ErrClosed) {
		// The channel died between the liveness check and the publish.
		p.logger.Warn("channel closed during publish, retrying on a new connection", zap.String("route", string(route)))
		p.resetLocked()
		err = p.publishLocked(ctx, exchange, key, publishing)
	}
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish %s: %w", route, err)
	}
	return nil
}

func (p *Publisher) publishLocked(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	if err := p.ensureChannel(ctx); err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()
	return p.ch.PublishWithContext(pubCtx, exchange, key, false, false, msg)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetLocked()
	return nil
}

func (p *Publisher) ensureChannel(ctx context.Context) error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if p.ch != nil {
		p.logger.Info("publisher channel closed by broker, reconnecting")
		p.resetLocked()
	}

	if p.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ConnectTimeout)
		defer cancel()
	}

	conn, err := p.connector.Connect(ctx)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := p.topology.Ensure(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func toTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	t := make(amqp.Table, len(headers))
	for k, v := range headers {
		t[k] = v
	}
	return t
}

func fromTable(t amqp.Table) map[string]string {
	if len(t) == 0 {
		return nil
	}
	headers := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	return headers
}
