package rabbit

import (
	"fmt"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

const (
	EventsExchange    = "order_events"
	InventoryQueue    = "inventory_queue"
	OrderStatusQueue  = "order_status_queue"
	NotificationQueue = "notification_queue"
	AnalyticsQueue    = "analytics_queue"
	DeadLetterQueue   = "dlq_queue"
)

type Binding struct {
	Queue string
	Keys  []events.Route
}

// Topology is declared on every (re)connect; every declaration is
// idempotent.
type Topology struct {
	Exchange string
	Queues   []Binding
}

func (t Topology) Ensure(ch Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}
	for _, b := range t.Queues {
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.Queue, err)
		}
		for _, key := range b.Keys {
			if err := ch.QueueBind(b.Queue, string(key), t.Exchange, false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.Queue, key, err)
			}
		}
	}
	return nil
}

var (
	inventoryBinding    = Binding{Queue: InventoryQueue, Keys: []events.Route{events.RouteOrderPlaced}}
	orderStatusBinding  = Binding{Queue: OrderStatusQueue, Keys: []events.Route{events.RouteInventoryReserved, events.RouteInventoryFailed}}
	notificationBinding = Binding{Queue: NotificationQueue, Keys: []events.Route{events.RouteInventoryReserved}}
	analyticsBinding    = Binding{Queue: AnalyticsQueue, Keys: []events.Route{events.RouteOrderPlaced, events.RouteInventoryReserved, events.RouteInventoryFailed}}
	deadLetterBinding   = Binding{Queue: DeadLetterQueue}
)

func InventoryTopology() Topology {
	return Topology{Exchange: EventsExchange, Queues: []Binding{inventoryBinding, deadLetterBinding}}
}

// OrderTopology declares every queue so that orders published before the
// other services start are not dropped by the exchange.
func OrderTopology() Topology {
	return Topology{
		Exchange: EventsExchange,
		Queues:   []Binding{orderStatusBinding, inventoryBinding, notificationBinding, deadLetterBinding},
	}
}

func NotificationTopology() Topology {
	return Topology{Exchange: EventsExchange, Queues: []Binding{notificationBinding}}
}

// AnalyticsTopology is declared only by the analytics service; events
// published while it has never run are not counted.
func AnalyticsTopology() Topology {
	return Topology{Exchange: EventsExchange, Queues: []Binding{analyticsBinding}}
}
