package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartVersionConflict means the cart changed since it was read.
	ErrCartVersionConflict = errors.New("cart was modified concurrently")
)

// CartRepository stores one cart document per user.
type CartRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	// Save inserts a new cart (Version == 0) or conditionally updates the
	// stored one when its version still equals cart.Version. On success
	// cart.Version holds the new version.
	Save(ctx context.Context, cart *domain.Cart) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// cartLineDoc is the JSONB shape of one line.
type cartLineDoc struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func encodeCartLines(lines []domain.CartLine) ([]byte, error) {
	docs := make([]cartLineDoc, 0, len(lines))
	for _, line := range lines {
		docs = append(docs, cartLineDoc{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return json.Marshal(docs)
}

func decodeCartLines(raw []byte) ([]domain.CartLine, error) {
	var docs []cartLineDoc
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, err
		}
	}
	lines := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, domain.CartLine{ProductID: doc.ProductID, Quantity: doc.Quantity})
	}
	return lines, nil
}

// FindByUserID loads the user's cart document
func (r *cartRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	query := `
		SELECT user_id, items, total_price, version, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`

	cart := &domain.Cart{}
	var rawItems []byte
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.UserID,
		&rawItems,
		&cart.TotalPrice,
		&cart.Version,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	cart.Items, err = decodeCartLines(rawItems)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cart items: %w", err)
	}

	return cart, nil
}

// Save persists the cart with an optimistic version check
func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	version, err := saveCart(ctx, r.db, cart)
	if err != nil {
		return err
	}
	cart.Version = version
	return nil
}

// saveCart writes cart through q and returns the stored version. It leaves
// cart untouched so a caller inside a transaction can apply the version
// only after commit.
func saveCart(ctx context.Context, q querier, cart *domain.Cart) (int64, error) {
	items, err := encodeCartLines(cart.Items)
	if err != nil {
		return 0, fmt.Errorf("failed to encode cart items: %w", err)
	}

	var result sql.Result
	if cart.IsNew() {
		result, err = q.ExecContext(ctx, `
			INSERT INTO carts (user_id, items, total_price, version, created_at, updated_at)
			VALUES ($1, $2, $3, 1, $4, $5)
			ON CONFLICT (user_id) DO NOTHING
		`, cart.UserID, string(items), cart.TotalPrice, cart.CreatedAt, cart.UpdatedAt)
	} else {
		result, err = q.ExecContext(ctx, `
			UPDATE carts
			SET items = $2, total_price = $3, version = version + 1, updated_at = $4
			WHERE user_id = $1 AND version = $5
		`, cart.UserID, string(items), cart.TotalPrice, cart.UpdatedAt, cart.Version)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return 0, ErrCartVersionConflict
	}

	return cart.Version + 1, nil
}
