package order

import "github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"

type Status string

const (
	StatusPlaced        Status = "PLACED"
	StatusConfirmed     Status = "CONFIRMED"
	StatusFailed        Status = "FAILED"
	StatusPublishFailed Status = "PUBLISH_FAILED"
)

// allowedFrom lists, per target status, the statuses it may be reached from.
// Re-applying the current status is always allowed.
var allowedFrom = map[Status][]Status{
	StatusConfirmed:     {StatusPlaced, StatusPublishFailed, StatusFailed},
	StatusFailed:        {StatusPlaced, StatusPublishFailed},
	StatusPublishFailed: {StatusPlaced},
}

func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, from := range allowedFrom[next] {
		if from == s {
			return true
		}
	}
	return false
}

// sourcesFor returns every status from which next can be reached.
func sourcesFor(next Status) []string {
	out := []string{string(next)}
	for _, from := range allowedFrom[next] {
		out = append(out, string(from))
	}
	return out
}

// StatusFromOutcome maps an inventory decision onto the order status.
func StatusFromOutcome(s events.OutcomeStatus) Status {
	if s == events.StatusReserved {
		return StatusConfirmed
	}
	return StatusFailed
}
