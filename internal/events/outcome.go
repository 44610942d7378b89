package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutcomeStatus string

const (
	StatusReserved OutcomeStatus = "RESERVED"
	StatusFailed   OutcomeStatus = "FAILED"
)

// InventoryOutcome is published once per reservation decision.
type InventoryOutcome struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	OrderID   string        `json:"order_id"`
	Item      string        `json:"item"`
	Qty       int           `json:"qty"`
	StudentID string        `json:"student_id,omitempty"`
	Status    OutcomeStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	EventTime time.Time     `json:"event_time"`
}

func NewReserved(ev OrderPlaced, now time.Time) InventoryOutcome {
	return newOutcome(ev, StatusReserved, "", now)
}

func NewFailed(ev OrderPlaced, reason string, now time.Time) InventoryOutcome {
	return newOutcome(ev, StatusFailed, reason, now)
}

func newOutcome(ev OrderPlaced, status OutcomeStatus, reason string, now time.Time) InventoryOutcome {
	eventType := EventTypeInventoryReserved
	if status == StatusFailed {
		eventType = EventTypeInventoryFailed
	}
	return InventoryOutcome{
		EventID:   uuid.NewString(),
		EventType: eventType,
		OrderID:   ev.OrderID,
		Item:      ev.Item,
		Qty:       ev.Qty,
		StudentID: ev.StudentID,
		Status:    status,
		Reason:    reason,
		EventTime: now.UTC(),
	}
}

func (o InventoryOutcome) Route() Route {
	if o.Status == StatusReserved {
		return RouteInventoryReserved
	}
	return RouteInventoryFailed
}

func (o InventoryOutcome) Marshal() ([]byte, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", o.EventType, err)
	}
	return body, nil
}

func DecodeInventoryOutcome(raw []byte) (InventoryOutcome, error) {
	var o InventoryOutcome
	if err := json.Unmarshal(raw, &o); err != nil {
		return InventoryOutcome{}, fmt.Errorf("decode inventory outcome: %w", err)
	}
	if o.OrderID == "" {
		return InventoryOutcome{}, fmt.Errorf("decode inventory outcome: missing order_id")
	}
	switch o.Status {
	case StatusReserved, StatusFailed:
	default:
		return InventoryOutcome{}, fmt.Errorf("decode inventory outcome: unknown status %q", o.Status)
	}
	return o, nil
}
