package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddToCartRequest represents the add-to-cart payload. A missing or
// non-positive quantity adds one.
type AddToCartRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"max=9999"`
}

// CartHandler serves the caller's cart
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetCart)
		r.Post("/", h.AddItem)
		r.Delete("/", h.Clear)
		r.Delete("/clear", h.Clear)
		r.Delete("/{productId}", h.RemoveItem)
	})
}

// GetCart returns the cart with live prices
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.cartService.GetCart(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Server error fetching cart", zap.String("user_id", userID.String()))
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// AddItem merges a product into the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	view, err := h.cartService.AddItem(r.Context(), userID, uuid.MustParse(req.ProductID), req.Quantity)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Server error adding to cart",
			zap.String("user_id", userID.String()),
			zap.String("product_id", req.ProductID),
		)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// RemoveItem drops one product's line
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	productID, ok := pathID(w, chi.URLParam(r, "productId"), "product")
	if !ok {
		return
	}

	view, err := h.cartService.RemoveItem(r.Context(), userID, productID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Server error removing from cart",
			zap.String("user_id", userID.String()),
			zap.String("product_id", productID.String()),
		)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// Clear empties the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.cartService.Clear(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Server error clearing cart", zap.String("user_id", userID.String()))
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}
