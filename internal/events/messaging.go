package events

//go:generate mockgen -source=messaging.go -destination=mocks/messaging.go -package=mocks

import "context"

// Route identifies where a message is published. On RabbitMQ it is the
// routing key on the shared exchange; on Kafka it selects a topic.
type Route string

const (
	RouteOrderPlaced       Route = "order.placed"
	RouteInventoryReserved Route = "inventory.reserved"
	RouteInventoryFailed   Route = "inventory.failed"
	RouteDeadLetter        Route = "dead-letter"
)

const (
	EventTypeOrderPlaced       = "OrderPlaced"
	EventTypeInventoryReserved = "InventoryReserved"
	EventTypeInventoryFailed   = "InventoryFailed"
)

// Message is a broker-neutral view of one delivery or publishing.
type Message struct {
	Key     string
	Body    []byte
	Headers map[string]string
}

// HandlerFunc processes one inbound message. Returning nil acks (or commits)
// the message; returning an error requeues it.
type HandlerFunc func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, route Route, msg Message) error
}

// Subscriber drives a receive loop until ctx is cancelled or the broker
// becomes unreachable at startup.
type Subscriber interface {
	Run(ctx context.Context, handler HandlerFunc) error
}
