package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DecodeError reports a body that is not a JSON object.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return "Could not decode message body: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a well-formed object with missing or invalid
// fields. Fields keeps the decoded object so it can be dead-lettered as-is.
type ValidationError struct {
	Fields map[string]json.RawMessage
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var errNotObject = errors.New("payload is not a JSON object")

// DecodeOrderPlaced parses and validates an order.placed body. It returns a
// *DecodeError or a *ValidationError on rejection.
//
// Missing fields are reported together, in the order order_id, item, qty,
// before qty is checked for being a positive integer.
func DecodeOrderPlaced(raw []byte) (OrderPlaced, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return OrderPlaced{}, &DecodeError{Raw: raw, Err: err}
	}
	if fields == nil {
		return OrderPlaced{}, &DecodeError{Raw: raw, Err: errNotObject}
	}

	orderID, hasOrderID := nonEmptyString(fields["order_id"])
	item, hasItem := nonEmptyString(fields["item"])
	rawQty, hasQty := fields["qty"]
	if hasQty && isNull(rawQty) {
		hasQty = false
	}

	var missing []string
	if !hasOrderID {
		missing = append(missing, "order_id")
	}
	if !hasItem {
		missing = append(missing, "item")
	}
	if !hasQty {
		missing = append(missing, "qty")
	}
	if len(missing) > 0 {
		return OrderPlaced{}, &ValidationError{
			Fields: fields,
			Reason: "Missing required field(s): " + strings.Join(missing, ", "),
		}
	}

	qty, ok := positiveInt(rawQty)
	if !ok {
		return OrderPlaced{}, &ValidationError{
			Fields: fields,
			Reason: fmt.Sprintf("Invalid qty: %s (must be a positive integer)", displayValue(rawQty)),
		}
	}

	ev := OrderPlaced{OrderID: orderID, Item: item, Qty: qty}
	ev.StudentID, _ = nonEmptyString(fields["student_id"])
	ev.EventType, _ = nonEmptyString(fields["event_type"])
	ev.EventID, _ = nonEmptyString(fields["event_id"])
	if t, ok := fields["event_time"]; ok {
		_ = json.Unmarshal(t, &ev.EventTime)
	}
	return ev, nil
}

func nonEmptyString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, s != ""
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// positiveInt accepts only JSON integer literals greater than zero; floats,
// strings and booleans are rejected.
func positiveInt(raw json.RawMessage) (int, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, strconv.IntSize)
	if err != nil || n <= 0 {
		return 0, false
	}
	return int(n), true
}

func displayValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
