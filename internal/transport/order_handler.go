package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderHandler serves the caller's order history
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

// List returns the caller's receipts, newest first
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	receipts, err := h.orderService.List(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Error fetching orders", zap.String("user_id", userID.String()))
		return
	}
	if receipts == nil {
		receipts = []*domain.Receipt{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, receipts)
}

// Get returns one of the caller's receipts
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, chi.URLParam(r, "id"), "order")
	if !ok {
		return
	}

	receipt, err := h.orderService.Get(r.Context(), userID, orderID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Error fetching order",
			zap.String("user_id", userID.String()),
			zap.String("order_id", orderID.String()),
		)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, receipt)
}
