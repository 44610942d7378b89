package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func newBaseRouter(logger *zap.Logger, origins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	r.Get("/health", health)
	return r
}

// NewOrderRouter serves the order front door.
func NewOrderRouter(h *OrderHandler, logger *zap.Logger, origins []string) http.Handler {
	r := newBaseRouter(logger, origins)

	r.Post("/order", h.Place)
	r.Get("/order/{orderID}", h.Get)
	r.Get("/orders", h.List)

	return r
}

// NewInventoryRouter serves a read-only view of the stock ledger.
func NewInventoryRouter(h *InventoryHandler, logger *zap.Logger, origins []string) http.Handler {
	r := newBaseRouter(logger, origins)

	r.Route("/api/inventory", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{item}", h.GetAvailability)
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
