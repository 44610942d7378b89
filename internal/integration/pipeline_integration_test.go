//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/broker"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/pipeline"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/rabbit"
)

func rabbitConfig(url string) config.Config {
	return config.Config{
		Broker: config.BrokerRabbitMQ,
		RabbitMQ: config.RabbitMQConfig{
			URL:            url,
			Retries:        10,
			Delay:          time.Second,
			ReconnectDelay: time.Second,
			PublishRetries: 3,
			PublishDelay:   500 * time.Millisecond,
			PublishTimeout: 3 * time.Second,
			DialTimeout:    10 * time.Second,
			Heartbeat:      10 * time.Second,
			Prefetch:       1,
		},
	}
}

type orderApp struct {
	baseURL string
}

// startServices runs the inventory pipeline and the order service against the
// same broker until the test ends.
func startServices(ctx context.Context, t *testing.T, cfg config.Config, stock map[string]int) (*orderApp, *inventory.Engine) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))

	engine, err := inventory.NewEngine(stock)
	require.NoError(t, err)

	invTransport, err := broker.New(cfg, broker.RoleInventory, logger.Named("inventory"))
	require.NoError(t, err)
	orderTransport, err := broker.New(cfg, broker.RoleOrder, logger.Named("order"))
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{}, 2)

	handler := pipeline.NewHandler(engine, invTransport.Publisher, logger.Named("inventory"))
	go func() {
		_ = invTransport.Subscriber.Run(runCtx, handler.Handle)
		done <- struct{}{}
	}()

	store := order.NewMemoryStore()
	updater := order.NewStatusUpdater(store, logger.Named("order"))
	go func() {
		_ = orderTransport.Subscriber.Run(runCtx, updater.Handle)
		done <- struct{}{}
	}()

	svc := order.NewService(store, orderTransport.Publisher, logger.Named("order"))
	srv := httptest.NewServer(httpapi.NewOrderRouter(httpapi.NewOrderHandler(svc, logger), logger, []string{"*"}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		<-done
		_ = invTransport.Close()
		_ = orderTransport.Close()
	})

	return &orderApp{baseURL: srv.URL}, engine
}

func (a *orderApp) place(t *testing.T, item string, qty int) string {
	t.Helper()

	body, err := json.Marshal(map[string]any{"item": item, "qty": qty, "student_id": "student-1"})
	require.NoError(t, err)

	res, err := http.Post(a.baseURL+"/order", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var out struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Equal(t, "PLACED", out.Status)
	return out.OrderID
}

func (a *orderApp) waitForStatus(t *testing.T, orderID string, want order.Status) {
	t.Helper()

	require.Eventually(t, func() bool {
		res, err := http.Get(a.baseURL + "/order/" + orderID)
		if err != nil {
			return false
		}
		defer res.Body.Close()

		var rec order.Record
		if res.StatusCode != http.StatusOK || json.NewDecoder(res.Body).Decode(&rec) != nil {
			return false
		}
		return rec.Status == want
	}, 30*time.Second, 200*time.Millisecond, "order %s never reached %s", orderID, want)
}

func TestOrderPipelineRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	url := startRabbitMQ(ctx, t)
	app, engine := startServices(ctx, t, rabbitConfig(url), map[string]int{"burger": 2})

	first := app.place(t, "burger", 2)
	app.waitForStatus(t, first, order.StatusConfirmed)

	available, err := engine.Available("burger")
	require.NoError(t, err)
	require.Equal(t, 0, available)

	second := app.place(t, "burger", 1)
	app.waitForStatus(t, second, order.StatusFailed)

	unknown := app.place(t, "tacos", 1)
	app.waitForStatus(t, unknown, order.StatusFailed)

	require.True(t, engine.Processed(first))
	require.False(t, engine.Processed(second))
}

func TestMalformedOrderIsDeadLettered(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	url := startRabbitMQ(ctx, t)
	_, engine := startServices(ctx, t, rabbitConfig(url), map[string]int{"burger": 2})

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, rabbit.OrderTopology().Ensure(ch))

	publish := func(body string) {
		require.NoError(t, ch.PublishWithContext(ctx, rabbit.EventsExchange, string(events.RouteOrderPlaced), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         []byte(body),
		}))
	}
	publish(`{not json`)
	publish(`{"order_id":"bad-1","item":"burger","qty":0}`)

	var letters []amqp.Delivery
	require.Eventually(t, func() bool {
		d, ok, err := ch.Get(rabbit.DeadLetterQueue, true)
		if err == nil && ok {
			letters = append(letters, d)
		}
		return len(letters) == 2
	}, 30*time.Second, 200*time.Millisecond)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(letters[0].Body, &decoded))
	require.Equal(t, "{not json", decoded["raw"])
	require.Equal(t, events.DeadLetterKindDecode, letters[0].Headers[events.HeaderDeadLetterKind])

	require.NoError(t, json.Unmarshal(letters[1].Body, &decoded))
	require.Equal(t, "Invalid qty: 0 (must be a positive integer)", decoded["error"])
	require.Equal(t, "bad-1", decoded["order_id"])

	require.False(t, engine.Processed("bad-1"))
	available, err := engine.Available("burger")
	require.NoError(t, err)
	require.Equal(t, 2, available)
}
