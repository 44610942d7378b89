package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/order"
)

type orderService interface {
	Place(ctx context.Context, req order.PlaceRequest) (order.Record, error)
	Get(ctx context.Context, orderID string) (order.Record, error)
	List(ctx context.Context) ([]order.Record, error)
}

// placeOrderRequest leaves qty range checks to the inventory pipeline, which
// dead-letters non-positive quantities.
type placeOrderRequest struct {
	Item      string `json:"item" validate:"required"`
	Qty       *int   `json:"qty" validate:"required"`
	StudentID string `json:"student_id"`
}

type placeOrderResponse struct {
	OrderID string       `json:"order_id"`
	Status  order.Status `json:"status"`
	Error   string       `json:"error,omitempty"`
}

type OrderHandler struct {
	orders   orderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(orders orderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("failed to decode request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "item and qty are required")
		return
	}

	rec, err := h.orders.Place(r.Context(), order.PlaceRequest{
		Item:      req.Item,
		Qty:       *req.Qty,
		StudentID: req.StudentID,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, placeOrderResponse{OrderID: rec.OrderID, Status: rec.Status})
	case errors.Is(err, order.ErrPublishFailed):
		writeJSON(w, http.StatusInternalServerError, placeOrderResponse{
			OrderID: rec.OrderID,
			Status:  rec.Status,
			Error:   err.Error(),
		})
	default:
		h.logger.Error("failed to place order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.Error("failed to get order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.orders.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recs == nil {
		recs = []order.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}
