package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutRequest selects cart lines by product id. The body is optional;
// an empty selection buys the whole cart.
type CheckoutRequest struct {
	SelectedItems []string `json:"selectedItems" validate:"omitempty,dive,uuid"`
}

// CheckoutResponse wraps the receipt of a placed order
type CheckoutResponse struct {
	Success bool            `json:"success"`
	Receipt *domain.Receipt `json:"receipt"`
}

// CheckoutHandler places orders from the cart
type CheckoutHandler struct {
	checkoutService service.CheckoutService
	logger          *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// RegisterRoutes registers the checkout route
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Post("/api/checkout", h.Checkout)
}

// Checkout buys the selected lines and returns the receipt
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil && !errors.Is(err, middleware.ErrEmptyBody) {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	selected := make([]uuid.UUID, 0, len(req.SelectedItems))
	for _, raw := range req.SelectedItems {
		selected = append(selected, uuid.MustParse(raw))
	}

	receipt, err := h.checkoutService.Checkout(r.Context(), userID, selected)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Checkout failed", zap.String("user_id", userID.String()))
		return
	}

	h.logger.Info("Checkout completed",
		zap.String("user_id", userID.String()),
		zap.String("order_id", receipt.OrderID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, CheckoutResponse{Success: true, Receipt: receipt})
}
