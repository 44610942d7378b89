package order

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPublishFailed     = errors.New("publish OrderPlaced failed")
)

type Record struct {
	OrderID   string    `json:"order_id"`
	Item      string    `json:"item"`
	Qty       int       `json:"qty"`
	StudentID string    `json:"student_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps order records. List returns records in insertion order.
type Store interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, orderID string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	UpdateStatus(ctx context.Context, orderID string, status Status) (Record, error)
}
