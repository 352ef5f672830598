package service

import (
	"context"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// OrderService reads a user's order history as receipts.
type OrderService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Receipt, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*domain.Receipt, error)
}

type orderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
}

func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository) OrderService {
	return &orderService{orders: orders, products: products}
}

// List returns the user's receipts, newest first.
func (s *orderService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Receipt, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, order := range orders {
		for _, id := range order.ProductIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve order products: %w", err)
	}

	receipts := make([]*domain.Receipt, 0, len(orders))
	for _, order := range orders {
		receipts = append(receipts, order.Receipt(products))
	}
	return receipts, nil
}

// Get returns one receipt. Another user's order reads as not found.
func (s *orderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*domain.Receipt, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("failed to get order: %w", repository.ErrOrderNotFound)
	}

	products, err := s.products.FindByIDs(ctx, order.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve order products: %w", err)
	}
	return order.Receipt(products), nil
}
