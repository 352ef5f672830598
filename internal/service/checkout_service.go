package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CheckoutService turns a selection of the user's cart into a paid order.
type CheckoutService interface {
	// Checkout purchases the cart lines whose product is in selected, or the
	// whole cart when selected is empty.
	Checkout(ctx context.Context, userID uuid.UUID, selected []uuid.UUID) (*domain.Receipt, error)
}

type checkoutService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	locks    *KeyedMutex
	opts     CartOptions
	clock    Clock
	logger   *zap.Logger
}

func NewCheckoutService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	locks *KeyedMutex,
	opts CartOptions,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		carts:    carts,
		products: products,
		orders:   orders,
		locks:    locks,
		opts:     opts.withDefaults(),
		clock:    systemClock{},
		logger:   logger,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, userID uuid.UUID, selected []uuid.UUID) (*domain.Receipt, error) {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire cart lock: %w", err)
	}
	defer unlock()

	ctx, cancel := withStoreTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		order, products, err := s.placeOrder(ctx, userID, selected)
		if errors.Is(err, repository.ErrCartVersionConflict) {
			s.logger.Debug("Cart version conflict during checkout, retrying",
				zap.String("user_id", userID.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("Order placed",
			zap.String("user_id", userID.String()),
			zap.String("order_id", order.ID.String()),
			zap.String("total", order.TotalPrice.String()),
			zap.Int("items", len(order.Items)),
		)

		return s.receipt(ctx, order, products), nil
	}

	return nil, ErrCartBusy
}

// placeOrder snapshots the purchase set and writes the order together with
// the shrunk cart. Nothing is written unless both succeed.
func (s *checkoutService) placeOrder(ctx context.Context, userID uuid.UUID, selected []uuid.UUID) (*domain.Order, map[uuid.UUID]*domain.Product, error) {
	cart, err := s.carts.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, nil, ErrEmptyCart
		}
		return nil, nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, nil, ErrEmptyCart
	}

	products, err := s.products.FindByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve cart products: %w", err)
	}
	prices := domain.PriceTable(products)

	// Lines whose product was deleted can't be bought.
	live := cart.Clone()
	domain.Recompute(live, prices)
	if len(live.Items) == 0 {
		return nil, nil, ErrEmptyCart
	}

	purchase := selectLines(live.Items, selected)
	if len(purchase) == 0 {
		return nil, nil, ErrNoSelection
	}

	now := s.clock.Now()
	order, err := domain.NewOrder(userID, purchase, products, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build order: %w", err)
	}

	remaining := live.Clone()
	remaining.RemoveLines(order.ProductIDs())
	domain.Recompute(remaining, prices)
	remaining.Touch(now)

	if err := s.orders.CreateWithCart(ctx, order, remaining); err != nil {
		if errors.Is(err, repository.ErrCartVersionConflict) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to place order: %w", err)
	}

	return order, products, nil
}

// receipt re-reads the stored order and resolves its products. If the
// re-read fails the order is already committed, so the in-memory snapshot
// is used instead.
func (s *checkoutService) receipt(ctx context.Context, placed *domain.Order, fallback map[uuid.UUID]*domain.Product) *domain.Receipt {
	var (
		stored   *domain.Order
		products map[uuid.UUID]*domain.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stored, err = s.orders.FindByID(gctx, placed.ID)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.products.FindByIDs(gctx, placed.ProductIDs())
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("Failed to re-read placed order, using snapshot",
			zap.String("order_id", placed.ID.String()),
			zap.Error(err),
		)
		return placed.Receipt(fallback)
	}

	return stored.Receipt(products)
}

// selectLines returns the lines whose product is in selected, or all lines
// when selected is empty.
func selectLines(lines []domain.CartLine, selected []uuid.UUID) []domain.CartLine {
	if len(selected) == 0 {
		return lines
	}

	want := make(map[uuid.UUID]struct{}, len(selected))
	for _, id := range selected {
		want[id] = struct{}{}
	}

	var picked []domain.CartLine
	for _, line := range lines {
		if _, ok := want[line.ProductID]; ok {
			picked = append(picked, line)
		}
	}
	return picked
}
