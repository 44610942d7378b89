// Package notification simulates confirming reserved orders to students.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

const unknown = "UNKNOWN"

// Notifier logs a confirmation for every InventoryReserved event. It never
// fails a delivery: bad payloads are logged and acked.
type Notifier struct {
	logger *zap.Logger
	delay  time.Duration
}

func NewNotifier(delay time.Duration, logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger, delay: delay}
}

func (n *Notifier) Handle(ctx context.Context, msg events.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx = observability.Extract(ctx, msg.Headers)
	_, span := observability.Tracer("fulfillment/notification").Start(ctx, "notification.send")
	defer span.End()

	var o events.InventoryOutcome
	if err := json.Unmarshal(msg.Body, &o); err != nil {
		n.logger.Error("error processing notification", zap.ByteString("body", msg.Body), zap.Error(err))
		return nil
	}
	orderID, item, studentID := orDefault(o.OrderID), orDefault(o.Item), orDefault(o.StudentID)

	log := n.logger.With(
		zap.String("order_id", orderID),
		zap.String("student_id", studentID),
		zap.String("item", item),
		zap.Int("qty", o.Qty),
	)
	log.Info(fmt.Sprintf("[NOTIFICATION] Order %s confirmed - sending email/SMS to %s (%s x%d)",
		orderID, studentID, item, o.Qty))

	// The send is simulated; shutdown may cut it short but the message is
	// still acked like a completed send.
	t := time.NewTimer(n.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}

	log.Info("[NOTIFICATION] Confirmation sent")
	return nil
}

func orDefault(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
