package inventory

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid reservation request")
)

type StockItem struct {
	Item      string `json:"item"`
	Available int    `json:"available"`
}

type Request struct {
	OrderID   string
	Item      string
	Qty       int
	StudentID string
}

type Outcome int

const (
	Reserved Outcome = iota + 1
	Failed
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Reserved:
		return "RESERVED"
	case Failed:
		return "FAILED"
	case Duplicate:
		return "DUPLICATE"
	default:
		return "UNKNOWN"
	}
}

// Decision is the result of one Reserve call. Remaining is the stock left
// for the item after the decision, or zero when the item is unknown.
type Decision struct {
	Outcome   Outcome
	Reason    string
	Remaining int
}
