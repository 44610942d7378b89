package inventory

import (
	"fmt"
	"sort"
	"sync"
)

// Engine owns the stock ledger and the set of orders already reserved.
// Stock is decremented only on success, and only successful orders are
// remembered, so a rejected order_id can be retried later.
type Engine struct {
	mu        sync.Mutex
	stock     map[string]int
	processed map[string]struct{}
}

func NewEngine(seed map[string]int) (*Engine, error) {
	stock := make(map[string]int, len(seed))
	for item, qty := range seed {
		if qty < 0 {
			return nil, fmt.Errorf("seed stock for %q is negative: %d", item, qty)
		}
		stock[item] = qty
	}
	return &Engine{
		stock:     stock,
		processed: make(map[string]struct{}),
	}, nil
}

// Reserve decides a single well-formed order. The duplicate check runs
// before any ledger access.
func (e *Engine) Reserve(req Request) (Decision, error) {
	if req.OrderID == "" || req.Item == "" || req.Qty <= 0 {
		return Decision{}, fmt.Errorf("%w: order_id=%q item=%q qty=%d", ErrInvalidRequest, req.OrderID, req.Item, req.Qty)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.processed[req.OrderID]; ok {
		return Decision{Outcome: Duplicate, Remaining: e.stock[req.Item]}, nil
	}

	available, ok := e.stock[req.Item]
	if !ok {
		return Decision{
			Outcome: Failed,
			Reason:  fmt.Sprintf("Item '%s' not found in inventory", req.Item),
		}, nil
	}
	if available < req.Qty {
		return Decision{
			Outcome:   Failed,
			Reason:    fmt.Sprintf("Insufficient stock for '%s': requested %d, available %d", req.Item, req.Qty, available),
			Remaining: available,
		}, nil
	}

	e.stock[req.Item] = available - req.Qty
	e.processed[req.OrderID] = struct{}{}
	return Decision{Outcome: Reserved, Remaining: e.stock[req.Item]}, nil
}

func (e *Engine) Available(item string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	qty, ok := e.stock[item]
	if !ok {
		return 0, ErrNotFound
	}
	return qty, nil
}

// Snapshot returns the ledger sorted by item name.
func (e *Engine) Snapshot() []StockItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := make([]StockItem, 0, len(e.stock))
	for item, qty := range e.stock {
		items = append(items, StockItem{Item: item, Available: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Item < items[j].Item })
	return items
}

func (e *Engine) Processed(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.processed[orderID]
	return ok
}
