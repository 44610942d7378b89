// Package broker wires the RabbitMQ or Kafka transport for each service.
package broker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/kafka"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/rabbit"
)

type Role string

const (
	RoleInventory    Role = "inventory-service"
	RoleOrder        Role = "order-service"
	RoleNotification Role = "notification-service"
	RoleAnalytics    Role = "analytics-service"
)

// Set is the transport a service needs. Publisher is nil for services that
// only consume.
type Set struct {
	Publisher  events.Publisher
	Subscriber events.Subscriber

	closers []func() error
}

func (s *Set) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func New(cfg config.Config, role Role, logger *zap.Logger) (*Set, error) {
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		return newRabbit(cfg.RabbitMQ, role, logger)
	case config.BrokerKafka:
		return newKafka(cfg.Kafka, role, logger)
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}

func newRabbit(cfg config.RabbitMQConfig, role Role, logger *zap.Logger) (*Set, error) {
	logger = logger.With(zap.String("broker", config.BrokerRabbitMQ))
	connector := rabbit.NewConnector(cfg, logger)

	var (
		topology rabbit.Topology
		queue    string
	)
	switch role {
	case RoleInventory:
		topology, queue = rabbit.InventoryTopology(), rabbit.InventoryQueue
	case RoleOrder:
		topology, queue = rabbit.OrderTopology(), rabbit.OrderStatusQueue
	case RoleNotification:
		topology, queue = rabbit.NotificationTopology(), rabbit.NotificationQueue
	case RoleAnalytics:
		topology, queue = rabbit.AnalyticsTopology(), rabbit.AnalyticsQueue
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	set := &Set{
		Subscriber: rabbit.NewConsumer(connector, topology, rabbit.ConsumerOptions{
			Queue:          queue,
			Tag:            string(role),
			Prefetch:       cfg.Prefetch,
			ReconnectDelay: cfg.ReconnectDelay,
		}, logger),
	}

	pubOpts := rabbit.PublisherOptions{Timeout: cfg.PublishTimeout, ConnectTimeout: cfg.PublishConnectTimeout}
	switch role {
	case RoleInventory:
		pub := rabbit.NewPublisher(connector, topology, pubOpts, logger)
		set.Publisher = pub
		set.closers = append(set.closers, pub.Close)
	case RoleOrder:
		// Placement runs inside an HTTP request, so it gets a short retry budget.
		pubConnector := connector.WithRetry(cfg.PublishRetries, cfg.PublishDelay)
		pub := rabbit.NewPublisher(pubConnector, topology, pubOpts, logger)
		set.Publisher = pub
		set.closers = append(set.closers, pub.Close)
	}
	return set, nil
}

func newKafka(cfg config.KafkaConfig, role Role, logger *zap.Logger) (*Set, error) {
	logger = logger.With(zap.String("broker", config.BrokerKafka))
	topics := kafka.TopicsFromConfig(cfg)

	groupID := cfg.GroupID
	if groupID == "" {
		groupID = string(role)
	}

	var consumed []string
	switch role {
	case RoleInventory:
		consumed = []string{cfg.OrderTopic}
	case RoleOrder:
		consumed = []string{cfg.ReservedTopic, cfg.FailedTopic}
	case RoleNotification:
		consumed = []string{cfg.ReservedTopic}
	case RoleAnalytics:
		consumed = []string{cfg.OrderTopic, cfg.ReservedTopic, cfg.FailedTopic}
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	ensure := func(ctx context.Context) error {
		return kafka.EnsureTopics(ctx, cfg, topics, logger)
	}
	set := &Set{
		Subscriber: kafka.NewConsumer(kafka.ReaderFactory(cfg, groupID, consumed...), ensure, cfg.ReconnectDelay, logger),
	}

	switch role {
	case RoleInventory, RoleOrder:
		writer := kafka.NewWriter(cfg)
		pub := kafka.NewPublisher(writer, topics)
		set.Publisher = pub
		set.closers = append(set.closers, pub.Close)
	}
	return set, nil
}
