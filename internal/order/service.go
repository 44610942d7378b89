package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

const DefaultStudentID = "unknown"

type PlaceRequest struct {
	Item      string
	Qty       int
	StudentID string
}

// Service records new orders and announces them with an OrderPlaced event.
type Service struct {
	store  Store
	pub    events.Publisher
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

func NewService(store Store, pub events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		pub:    pub,
		logger: logger,
		tracer: observability.Tracer("fulfillment/order"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Place stores the order as PLACED and publishes it. If the publish fails
// the stored order becomes PUBLISH_FAILED and the returned error wraps
// ErrPublishFailed; the returned record is valid in both cases.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (Record, error) {
	if req.StudentID == "" {
		req.StudentID = DefaultStudentID
	}

	ctx, span := s.tracer.Start(ctx, "order.place", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	now := s.now().UTC()
	rec := Record{
		OrderID:   s.newID(),
		Item:      req.Item,
		Qty:       req.Qty,
		StudentID: req.StudentID,
		Status:    StatusPlaced,
		CreatedAt: now,
	}
	span.SetAttributes(attribute.String("order.id", rec.OrderID), attribute.String("order.item", rec.Item))

	if err := s.store.Create(ctx, rec); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Record{}, fmt.Errorf("store order: %w", err)
	}

	log := s.logger.With(zap.String("order_id", rec.OrderID), zap.String("item", rec.Item), zap.Int("qty", rec.Qty))

	body, err := events.NewOrderPlaced(rec.OrderID, rec.Item, rec.Qty, rec.StudentID, now).Marshal()
	if err == nil {
		err = s.pub.Publish(ctx, events.RouteOrderPlaced, events.Message{
			Key:     rec.OrderID,
			Body:    body,
			Headers: observability.Inject(ctx, nil),
		})
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error("failed to publish OrderPlaced", zap.Error(err))

		updated, uerr := s.store.UpdateStatus(context.WithoutCancel(ctx), rec.OrderID, StatusPublishFailed)
		if uerr != nil {
			log.Error("mark order PUBLISH_FAILED", zap.Error(uerr))
			rec.Status = StatusPublishFailed
		} else {
			rec = updated
		}
		return rec, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	log.Info("published OrderPlaced")
	return rec, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (Record, error) {
	return s.store.Get(ctx, orderID)
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.store.List(ctx)
}
