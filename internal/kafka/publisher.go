package kafka

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

// Publisher writes one message per call, keyed by the message key so that
// all events of an order land on the same partition.
type Publisher struct {
	writer Writer
	topics Topics
}

func NewPublisher(writer Writer, topics Topics) *Publisher {
	return &Publisher{writer: writer, topics: topics}
}

func (p *Publisher) Publish(ctx context.Context, route events.Route, msg events.Message) error {
	topic, ok := p.topics[route]
	if !ok {
		return fmt.Errorf("no topic for route %s", route)
	}

	err := p.writer.WriteMessages(ctx, kafkago.Message{
		Topic:   topic,
		Key:     []byte(msg.Key),
		Value:   msg.Body,
		Headers: toHeaders(msg.Headers),
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
