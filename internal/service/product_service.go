package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// ProductService is the owner-scoped catalog.
type ProductService interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)
	Create(ctx context.Context, ownerID uuid.UUID, fields domain.ProductFields) (*domain.Product, error)
	Update(ctx context.Context, productID, ownerID uuid.UUID, fields domain.ProductFields) (*domain.Product, error)
	Delete(ctx context.Context, productID, ownerID uuid.UUID) error
}

type productService struct {
	products repository.ProductRepository
	clock    Clock
}

func NewProductService(products repository.ProductRepository) ProductService {
	return &productService{products: products, clock: systemClock{}}
}

func (s *productService) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	products, err := s.products.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Create requires a name and a price; the price must be >= 0.
func (s *productService) Create(ctx context.Context, ownerID uuid.UUID, fields domain.ProductFields) (*domain.Product, error) {
	if fields.Name == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrProductNameRequired)
	}
	if fields.Price == nil {
		return nil, fmt.Errorf("%w: price is required", ErrInvalidInput)
	}

	now := s.clock.Now()
	product := &domain.Product{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields.Apply(product)

	if err := product.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, s.storeError("create", err)
	}

	return product, nil
}

// Update applies a partial update after the NotFound and ownership checks.
func (s *productService) Update(ctx context.Context, productID, ownerID uuid.UUID, fields domain.ProductFields) (*domain.Product, error) {
	product, err := s.owned(ctx, productID, ownerID)
	if err != nil {
		return nil, err
	}

	fields.Apply(product)
	if err := product.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	product.UpdatedAt = s.clock.Now()

	if err := s.products.Update(ctx, product); err != nil {
		return nil, s.storeError("update", err)
	}

	return product, nil
}

// Delete removes an owned product. Carts still holding it drop the line on
// their next recompute.
func (s *productService) Delete(ctx context.Context, productID, ownerID uuid.UUID) error {
	if _, err := s.owned(ctx, productID, ownerID); err != nil {
		return err
	}

	if err := s.products.Delete(ctx, productID); err != nil {
		return s.storeError("delete", err)
	}

	return nil
}

func (s *productService) owned(ctx context.Context, productID, ownerID uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if product.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: product %s belongs to another user", ErrForbidden, productID)
	}
	return product, nil
}

func (s *productService) storeError(op string, err error) error {
	if errors.Is(err, repository.ErrProductInvalidPrice) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrNegativePrice)
	}
	if errors.Is(err, repository.ErrProductOutOfRange) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return fmt.Errorf("failed to %s product: %w", op, err)
}
