package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// In-memory repositories. One mutex guards everything, which also makes
// CreateWithCart atomic.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	products map[uuid.UUID]*domain.Product
	carts    map[uuid.UUID]*domain.Cart
	orders   map[uuid.UUID]*domain.Order
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*domain.User),
		products: make(map[uuid.UUID]*domain.Product),
		carts:    make(map[uuid.UUID]*domain.Cart),
		orders:   make(map[uuid.UUID]*domain.Order),
	}
}

type memUsers struct{ *memStore }

func (m memUsers) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return repository.ErrUserAlreadyExists
	}
	cp := *user
	m.users[user.Email] = &cp
	return nil
}

func (m memUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m memUsers) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type memProducts struct{ *memStore }

func (m memProducts) Create(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m memProducts) Update(ctx context.Context, p *domain.Product) error {
	return m.Create(ctx, p)
}

func (m memProducts) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m memProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProductNotFound
}

func (m memProducts) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := make(map[uuid.UUID]*domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			found[id] = &cp
		}
	}
	return found, nil
}

func (m memProducts) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
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

type memCarts struct{ *memStore }

func (m memCarts) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		return c.Clone(), nil
	}
	return nil, repository.ErrCartNotFound
}

func (m memCarts) Save(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(cart)
}

func (m *memStore) saveLocked(cart *domain.Cart) error {
	stored, ok := m.carts[cart.UserID]
	if (cart.IsNew() && ok) || (!cart.IsNew() && (!ok || stored.Version != cart.Version)) {
		return repository.ErrCartVersionConflict
	}
	cp := cart.Clone()
	cp.Version = cart.Version + 1
	m.carts[cart.UserID] = cp
	cart.Version = cp.Version
	return nil
}

type memOrders struct{ *memStore }

func (m memOrders) CreateWithCart(ctx context.Context, order *domain.Order, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveLocked(cart); err != nil {
		return err
	}
	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	return nil
}

func (m memOrders) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (m memOrders) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].OrderedAt.After(list[j].OrderedAt) })
	return list, nil
}

// testAPI is the full route table over an in-memory store.
type testAPI struct {
	t      *testing.T
	store  *memStore
	router chi.Router
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	store := newMemStore()

	users := service.NewUserService(memUsers{store}, "handler-test-secret", 7*24*time.Hour)
	locks := service.NewKeyedMutex()
	opts := service.CartOptions{MaxRetries: 5, StoreTimeout: time.Second}

	products := memProducts{store}
	carts := memCarts{store}
	orders := memOrders{store}

	auth := middleware.AuthMiddleware(users, logger)
	router := chi.NewRouter()
	NewAuthHandler(users, logger).RegisterRoutes(router, auth)
	NewProductHandler(service.NewProductService(products), logger).RegisterRoutes(router, auth)
	NewCartHandler(service.NewCartService(carts, products, locks, opts, logger), logger).RegisterRoutes(router, auth)
	NewCheckoutHandler(service.NewCheckoutService(carts, products, orders, locks, opts, logger), logger).RegisterRoutes(router, auth)
	NewOrderHandler(service.NewOrderService(orders, products), logger).RegisterRoutes(router, auth)

	return &testAPI{t: t, store: store, router: router}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// signup registers email and returns its token and user id.
func (a *testAPI) signup(email string) (string, string) {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var resp AuthResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token, resp.User.ID
}

// createProduct adds a product as token's user and returns its id.
func (a *testAPI) createProduct(token, name string, price float64) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/products", token, map[string]interface{}{"name": name, "price": price})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var p struct {
		ID string `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &p))
	return p.ID
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp middleware.ErrorResponse
	decodeJSON(t, w, &resp)
	return resp.Error.Code
}
