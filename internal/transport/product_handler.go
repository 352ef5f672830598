package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateProductRequest represents the product creation payload
type CreateProductRequest struct {
	Name        *string          `json:"name" validate:"required,max=255"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Image       *string          `json:"image" validate:"omitempty,max=1024"`
}

// UpdateProductRequest is a partial update; absent fields are left alone
type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Image       *string          `json:"image" validate:"omitempty,max=1024"`
}

func (r CreateProductRequest) fields() domain.ProductFields {
	return domain.ProductFields{Name: r.Name, Price: r.Price, Description: r.Description, Image: r.Image}
}

func (r UpdateProductRequest) fields() domain.ProductFields {
	return domain.ProductFields{Name: r.Name, Price: r.Price, Description: r.Description, Image: r.Image}
}

// ProductHandler serves the owner-scoped catalog
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes. Every route requires a user.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Get("/my", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// List returns the caller's products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	products, err := h.productService.List(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Error fetching products", zap.String("user_id", userID.String()))
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Create adds a product owned by the caller
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	product, err := h.productService.Create(r.Context(), userID, req.fields())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Error adding product", zap.String("user_id", userID.String()))
		return
	}

	h.logger.Info("Product created",
		zap.String("user_id", userID.String()),
		zap.String("product_id", product.ID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update changes a product the caller owns
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	productID, ok := pathID(w, chi.URLParam(r, "id"), "product")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	product, err := h.productService.Update(r.Context(), productID, userID, req.fields())
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			middleware.RespondWithError(w, http.StatusForbidden, middleware.CodeForbidden, "You can only edit your own product")
			return
		}
		respondWithServiceError(w, h.logger, err, "Error updating product",
			zap.String("user_id", userID.String()),
			zap.String("product_id", productID.String()),
		)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product the caller owns
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	productID, ok := pathID(w, chi.URLParam(r, "id"), "product")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), productID, userID); err != nil {
		if errors.Is(err, service.ErrForbidden) {
			middleware.RespondWithError(w, http.StatusForbidden, middleware.CodeForbidden, "You can only delete your own product")
			return
		}
		respondWithServiceError(w, h.logger, err, "Error deleting product",
			zap.String("user_id", userID.String()),
			zap.String("product_id", productID.String()),
		)
		return
	}

	h.logger.Info("Product deleted",
		zap.String("user_id", userID.String()),
		zap.String("product_id", productID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}
