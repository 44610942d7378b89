package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

var ErrBrokerUnavailable = errors.New("kafka unavailable")

type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Topics maps routes onto topic names.
type Topics map[events.Route]string

func TopicsFromConfig(cfg config.KafkaConfig) Topics {
	return Topics{
		events.RouteOrderPlaced:       cfg.OrderTopic,
		events.RouteInventoryReserved: cfg.ReservedTopic,
		events.RouteInventoryFailed:   cfg.FailedTopic,
		events.RouteDeadLetter:        cfg.DLQTopic,
	}
}

func (t Topics) all() []string {
	out := make([]string, 0, len(t))
	for _, topic := range t {
		out = append(out, topic)
	}
	return out
}

func NewWriter(cfg config.KafkaConfig) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

// ReaderFactory builds a group reader over the given topics.
func ReaderFactory(cfg config.KafkaConfig, groupID string, topics ...string) func() Reader {
	return func() Reader {
		return kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     groupID,
			GroupTopics: topics,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafkago.FirstOffset,
		})
	}
}

// EnsureTopics creates the topics through the cluster controller, treating
// already existing topics as success. It retries attempts times.
func EnsureTopics(ctx context.Context, cfg config.KafkaConfig, topics Topics, logger *zap.Logger) error {
	attempts := max(cfg.Retries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = createTopics(ctx, cfg, topics.all())
		if lastErr == nil {
			logger.Info("kafka topics ready", zap.Int("attempt", attempt))
			return nil
		}
		logger.Warn("kafka not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Duration("delay", cfg.Delay),
			zap.Error(lastErr),
		)
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, cfg.Delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrBrokerUnavailable, attempts, lastErr)
}

func createTopics(ctx context.Context, cfg config.KafkaConfig, topics []string) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafkago.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	cconn, err := kafkago.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cconn.Close()

	configs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: cfg.ReplicationFactor,
		})
	}
	if err := cconn.CreateTopics(configs...); err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return fmt.Errorf("create topics: %w", err)
	}
	return nil
}

func toHeaders(headers map[string]string) []kafkago.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafkago.Header, 0, len(headers))
	for k, v := range headers {
		out = append(out, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func fromHeaders(headers []kafkago.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
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
