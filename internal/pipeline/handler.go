package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

// Handler turns order.placed deliveries into reservation decisions.
//
// Every delivery that reaches a decision is acked: malformed bodies go to
// the dead-letter route, rejections and reservations are published as
// outcomes, and duplicates are dropped without publishing anything.
type Handler struct {
	engine *inventory.Engine
	pub    events.Publisher
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewHandler(engine *inventory.Engine, pub events.Publisher, logger *zap.Logger) *Handler {
	return &Handler{
		engine: engine,
		pub:    pub,
		logger: logger,
		tracer: observability.Tracer("fulfillment/pipeline"),
		now:    time.Now,
	}
}

// Handle implements events.HandlerFunc. It only returns an error when ctx is
// already done, so the broker redelivers the message after restart.
func (h *Handler) Handle(ctx context.Context, msg events.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx = observability.Extract(ctx, msg.Headers)
	ctx, span := h.tracer.Start(ctx, "inventory.reserve", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	// Once a decision is taken its publish must not be cut short by shutdown.
	pubCtx := context.WithoutCancel(ctx)

	ev, err := events.DecodeOrderPlaced(msg.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.deadLetter(pubCtx, msg, err)
		return nil
	}

	span.SetAttributes(
		attribute.String("order.id", ev.OrderID),
		attribute.String("order.item", ev.Item),
		attribute.Int("order.qty", ev.Qty),
	)
	log := h.logger.With(zap.String("order_id", ev.OrderID), zap.String("item", ev.Item), zap.Int("qty", ev.Qty))

	decision, err := h.engine.Reserve(inventory.Request{
		OrderID:   ev.OrderID,
		Item:      ev.Item,
		Qty:       ev.Qty,
		StudentID: ev.StudentID,
	})
	if err != nil {
		span.RecordError(err)
		log.Error("reservation rejected by engine", zap.Error(err))
		return nil
	}
	span.SetAttributes(attribute.String("inventory.outcome", decision.Outcome.String()))

	var outcome events.InventoryOutcome
	switch decision.Outcome {
	case inventory.Duplicate:
		log.Info("duplicate order, skipping")
		return nil
	case inventory.Reserved:
		log.Info("inventory reserved", zap.Int("remaining", decision.Remaining))
		outcome = events.NewReserved(ev, h.now())
	default:
		log.Warn("inventory failed", zap.String("reason", decision.Reason))
		outcome = events.NewFailed(ev, decision.Reason, h.now())
	}

	h.publishOutcome(pubCtx, log, outcome)
	return nil
}

func (h *Handler) publishOutcome(ctx context.Context, log *zap.Logger, outcome events.InventoryOutcome) {
	body, err := outcome.Marshal()
	if err != nil {
		log.Error("encode outcome", zap.Error(err))
		return
	}

	msg := events.Message{Key: outcome.OrderID, Body: body, Headers: observability.Inject(ctx, nil)}
	if err := h.pub.Publish(ctx, outcome.Route(), msg); err != nil {
		// The ledger change stays applied; there is no outbox to retry from.
		log.Error("publish outcome failed", zap.String("route", string(outcome.Route())), zap.Error(err))
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

func (h *Handler) deadLetter(ctx context.Context, in events.Message, rejection error) {
	log := h.logger.With(zap.String("reason", rejection.Error()))

	var validationErr *events.ValidationError
	if errors.As(rejection, &validationErr) {
		if orderID, ok := validationErr.Fields["order_id"]; ok {
			log = log.With(zap.ByteString("order_id", orderID))
		}
	} else {
		log = log.With(zap.ByteString("raw", in.Body))
	}

	msg, err := events.DeadLetter(in.Key, rejection)
	if err != nil {
		log.Error("build dead letter", zap.Error(err))
		return
	}
	msg.Headers = observability.Inject(ctx, msg.Headers)

	if err := h.pub.Publish(ctx, events.RouteDeadLetter, msg); err != nil {
		log.Error("dead-letter publish failed, dropping message", zap.Error(err))
		return
	}
	log.Warn("malformed message routed to DLQ")
}
