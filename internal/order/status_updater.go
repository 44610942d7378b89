package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

// StatusUpdater applies inventory outcomes to stored orders. Every message
// is acked; bad payloads and unknown orders are logged and dropped.
type StatusUpdater struct {
	store  Store
	logger *zap.Logger
	tracer trace.Tracer
}

func NewStatusUpdater(store Store, logger *zap.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
		tracer: observability.Tracer("fulfillment/order"),
	}
}

func (u *StatusUpdater) Handle(ctx context.Context, msg events.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx = observability.Extract(ctx, msg.Headers)
	ctx, span := u.tracer.Start(ctx, "order.status", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	outcome, err := events.DecodeInventoryOutcome(msg.Body)
	if err != nil {
		u.logger.Error("error processing status update", zap.ByteString("body", msg.Body), zap.Error(err))
		return nil
	}

	status := StatusFromOutcome(outcome.Status)
	span.SetAttributes(attribute.String("order.id", outcome.OrderID), attribute.String("order.status", string(status)))
	log := u.logger.With(zap.String("order_id", outcome.OrderID), zap.String("status", string(status)))

	_, err = u.store.UpdateStatus(context.WithoutCancel(ctx), outcome.OrderID, status)
	switch {
	case err == nil:
		log.Info("order updated")
	case errors.Is(err, ErrNotFound):
		log.Warn("status update for unknown order")
	case errors.Is(err, ErrInvalidTransition):
		log.Warn("ignoring status update", zap.Error(err))
	default:
		span.RecordError(err)
		log.Error("error processing status update", zap.Error(err))
	}
	return nil
}
