package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderPlaced is published by the order service for every accepted order.
type OrderPlaced struct {
	EventType string    `json:"event_type,omitempty"`
	EventID   string    `json:"event_id,omitempty"`
	OrderID   string    `json:"order_id"`
	Item      string    `json:"item"`
	Qty       int       `json:"qty"`
	StudentID string    `json:"student_id,omitempty"`
	EventTime time.Time `json:"event_time,omitzero"`
}

func NewOrderPlaced(orderID, item string, qty int, studentID string, now time.Time) OrderPlaced {
	return OrderPlaced{
		EventType: EventTypeOrderPlaced,
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		Item:      item,
		Qty:       qty,
		StudentID: studentID,
		EventTime: now.UTC(),
	}
}

func (e OrderPlaced) Marshal() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal OrderPlaced: %w", err)
	}
	return body, nil
}
