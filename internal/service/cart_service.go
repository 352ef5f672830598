package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxRetries bounds the optimistic read-modify-write loop.
const DefaultMaxRetries = 5

// CartService is the per-user cart engine. Every mutation recomputes the
// cart total from live product prices.
type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*domain.CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) (*domain.CartView, error)
}

// CartOptions tunes the cart and checkout engines.
type CartOptions struct {
	MaxRetries   int
	StoreTimeout time.Duration
}

func (o CartOptions) withDefaults() CartOptions {
	if o.MaxRetries < 1 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

type cartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	locks    *KeyedMutex
	opts     CartOptions
	clock    Clock
	logger   *zap.Logger
}

// NewCartService creates a cart engine. locks must be shared with the
// checkout service so both serialize on the same user.
func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	locks *KeyedMutex,
	opts CartOptions,
	logger *zap.Logger,
) CartService {
	return &cartService{
		carts:    carts,
		products: products,
		locks:    locks,
		opts:     opts.withDefaults(),
		clock:    systemClock{},
		logger:   logger,
	}
}

// GetCart returns the cart with a live total without writing it back. A user
// without a cart gets an empty one.
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartView, error) {
	ctx, cancel := withStoreTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	cart, err := s.carts.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCartView(domain.NewCart(userID, s.clock.Now()), nil, nil), nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	cart = cart.Clone()
	products, err := s.products.FindByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cart products: %w", err)
	}
	orphaned := domain.Recompute(cart, domain.PriceTable(products))

	return domain.NewCartView(cart, products, orphaned), nil
}

// AddItem merges quantity (minimum 1) into the line for productID, creating
// the cart on first use. A line that would exceed domain.MaxLineQuantity is
// rejected with ErrInvalidInput.
func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartView, error) {
	if quantity < 1 {
		quantity = 1
	}

	return s.mutate(ctx, userID, true, func(ctx context.Context, cart *domain.Cart) error {
		if _, err := s.products.FindByID(ctx, productID); err != nil {
			return fmt.Errorf("failed to find product: %w", err)
		}
		if err := cart.AddLine(productID, quantity); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil
	})
}

// RemoveItem drops the line for productID. A missing line is not an error.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*domain.CartView, error) {
	return s.mutate(ctx, userID, false, func(_ context.Context, cart *domain.Cart) error {
		cart.RemoveLine(productID)
		return nil
	})
}

// Clear empties the cart. The cart row itself is kept.
func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) (*domain.CartView, error) {
	return s.mutate(ctx, userID, false, func(_ context.Context, cart *domain.Cart) error {
		cart.Clear()
		return nil
	})
}

// mutate runs one read-modify-write of the user's cart under the user's
// lock, retrying when the stored version moved underneath it.
func (s *cartService) mutate(
	ctx context.Context,
	userID uuid.UUID,
	create bool,
	apply func(ctx context.Context, cart *domain.Cart) error,
) (*domain.CartView, error) {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire cart lock: %w", err)
	}
	defer unlock()

	ctx, cancel := withStoreTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		cart, err := s.carts.FindByUserID(ctx, userID)
		switch {
		case errors.Is(err, repository.ErrCartNotFound) && create:
			cart = domain.NewCart(userID, s.clock.Now())
		case err != nil:
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}

		if err := apply(ctx, cart); err != nil {
			return nil, err
		}

		products, err := s.products.FindByIDs(ctx, cart.ProductIDs())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cart products: %w", err)
		}
		orphaned := domain.Recompute(cart, domain.PriceTable(products))
		cart.Touch(s.clock.Now())

		err = s.carts.Save(ctx, cart)
		if errors.Is(err, repository.ErrCartVersionConflict) {
			s.logger.Debug("Cart version conflict, retrying",
				zap.String("user_id", userID.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save cart: %w", err)
		}

		if len(orphaned) > 0 {
			s.logger.Info("Dropped unavailable cart lines",
				zap.String("user_id", userID.String()),
				zap.Int("count", len(orphaned)),
			)
		}

		return domain.NewCartView(cart, products, orphaned), nil
	}

	s.logger.Warn("Cart update gave up after retries",
		zap.String("user_id", userID.String()),
		zap.Int("max_retries", s.opts.MaxRetries),
	)
	return nil, ErrCartBusy
}

func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
