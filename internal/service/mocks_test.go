package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mock repositories for testing. Reads and writes copy so services can't
// alias stored state, the same as a real store.

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	cp := *user
	m.users[user.Email] = &cp
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			cp := *user
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockProductRepository struct {
	mu       sync.Mutex
	products  map[uuid.UUID]*domain.Product
	findErr   error
	updateErr error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) put(p *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
}

func (m *mockProductRepository) setPrice(id uuid.UUID, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].Price = decimal.RequireFromString(price)
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if product.Price.IsNegative() {
		return repository.ErrProductInvalidPrice
	}
	m.put(product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	_, ok := m.products[product.ID]
	m.mu.Unlock()
	if !ok {
		return repository.ErrProductNotFound
	}
	m.put(product)
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	found := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			found[id] = &cp
		}
	}
	return found, nil
}

func (m *mockProductRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*domain.Product
	for _, p := range m.products {
		if p.OwnerID == ownerID {
			cp := *p
			list = append(list, &cp)
		}
	}
	return list, nil
}

type mockCartRepository struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*domain.Cart
	// conflictsLeft forces that many saves to fail with a version conflict.
	conflictsLeft int
	saves         int
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[uuid.UUID]*domain.Cart)}
}

func (m *mockCartRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	return m.saveWith(cart, nil)
}

// saveWith runs the version check, then commit, then stores the cart. A
// commit error leaves the stored cart untouched.
func (m *mockCartRepository) saveWith(cart *domain.Cart, commit func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return repository.ErrCartVersionConflict
	}

	stored, exists := m.carts[cart.UserID]
	if cart.IsNew() && exists {
		return repository.ErrCartVersionConflict
	}
	if !cart.IsNew() && (!exists || stored.Version != cart.Version) {
		return repository.ErrCartVersionConflict
	}

	if commit != nil {
		if err := commit(); err != nil {
			return err
		}
	}

	cp := cart.Clone()
	cp.Version = cart.Version + 1
	m.carts[cart.UserID] = cp
	cart.Version = cp.Version
	m.saves++
	return nil
}

func (m *mockCartRepository) stored(userID uuid.UUID) *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart, ok := m.carts[userID]; ok {
		return cart.Clone()
	}
	return nil
}

type mockOrderRepository struct {
	mu        sync.Mutex
	carts     *mockCartRepository
	orders    map[uuid.UUID]*domain.Order
	createErr error
	findErr   error
}

func newMockOrderRepository(carts *mockCartRepository) *mockOrderRepository {
	return &mockOrderRepository{carts: carts, orders: make(map[uuid.UUID]*domain.Order)}
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}

func (m *mockOrderRepository) CreateWithCart(ctx context.Context, order *domain.Order, cart *domain.Cart) error {
	return m.carts.saveWith(cart, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.createErr != nil {
			return m.createErr
		}
		m.orders[order.ID] = copyOrder(order)
		return nil
	})
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			list = append(list, copyOrder(order))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].OrderedAt.After(list[j].OrderedAt)
	})
	return list, nil
}

func (m *mockOrderRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// testEnv wires the cart, checkout and order services over shared mocks.
type testEnv struct {
	products *mockProductRepository
	carts    *mockCartRepository
	orders   *mockOrderRepository
	locks    *KeyedMutex
	cart     CartService
	checkout CheckoutService
	history  OrderService
	sellerID uuid.UUID
}

func newTestEnv() *testEnv {
	products := newMockProductRepository()
	carts := newMockCartRepository()
	orders := newMockOrderRepository(carts)
	locks := NewKeyedMutex()
	opts := CartOptions{MaxRetries: 10, StoreTimeout: time.Second}
	logger := zap.NewNop()

	return &testEnv{
		products: products,
		carts:    carts,
		orders:   orders,
		locks:    locks,
		cart:     NewCartService(carts, products, locks, opts, logger),
		checkout: NewCheckoutService(carts, products, orders, locks, opts, logger),
		history:  NewOrderService(orders, products),
		sellerID: uuid.New(),
	}
}

func (e *testEnv) addProduct(t testing.TB, name, price string) *domain.Product {
	t.Helper()
	now := time.Now().UTC()
	p := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Price:       decimal.RequireFromString(price),
		Description: name + " description",
		Image:       "/img/" + name + ".png",
		OwnerID:     e.sellerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.products.put(p)
	return p
}

// liveTotal is the sum of current price x quantity over the stored cart.
func (e *testEnv) liveTotal(userID uuid.UUID) decimal.Decimal {
	cart := e.carts.stored(userID)
	if cart == nil {
		return decimal.Zero
	}
	products, _ := e.products.FindByIDs(context.Background(), cart.ProductIDs())
	total := decimal.Zero
	for _, line := range cart.Items {
		total = total.Add(domain.LineTotal(products[line.ProductID].Price, line.Quantity))
	}
	return total
}
