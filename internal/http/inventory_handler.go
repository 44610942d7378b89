package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/inventory"
)

type stockReader interface {
	Available(item string) (int, error)
	Snapshot() []inventory.StockItem
}

type InventoryHandler struct {
	stock stockReader
}

func NewInventoryHandler(stock stockReader) *InventoryHandler {
	return &InventoryHandler{stock: stock}
}

func (h *InventoryHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stock.Snapshot())
}

func (h *InventoryHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item")
	available, err := h.stock.Available(item)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, inventory.StockItem{Item: item, Available: available})
}
