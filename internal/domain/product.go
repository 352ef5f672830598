package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, matching what the storefront UI sends.
	decimal.MarshalJSONWithoutQuotes = true
}

// Column limits of the products table.
const (
	MaxProductNameLength  = 255
	MaxProductImageLength = 1024
	PriceDecimalPlaces    = 2
)

// MaxPrice is the largest value a NUMERIC(12,2) price column holds.
var MaxPrice = decimal.RequireFromString("9999999999.99")

var (
	ErrProductNameRequired = errors.New("product name is required")
	ErrProductNameTooLong  = fmt.Errorf("product name cannot exceed %d characters", MaxProductNameLength)
	ErrProductImageTooLong = fmt.Errorf("image cannot exceed %d characters", MaxProductImageLength)
	ErrNegativePrice       = errors.New("price must be greater than or equal to 0")
	ErrPriceTooLarge       = fmt.Errorf("price cannot exceed %s", MaxPrice.StringFixed(PriceDecimalPlaces))
	ErrPricePrecision      = fmt.Errorf("price cannot have more than %d decimal places", PriceDecimalPlaces)
)

// Product represents a catalog entry owned by exactly one user
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Description string          `json:"description" db:"description"`
	Image       string          `json:"image" db:"image"`
	OwnerID     uuid.UUID       `json:"ownerId" db:"owner_id"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// Validate checks the catalog invariants: a name and a non-negative price,
// both within what the products table stores without truncation or rounding.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrProductNameRequired
	}
	if utf8.RuneCountInString(p.Name) > MaxProductNameLength {
		return ErrProductNameTooLong
	}
	if utf8.RuneCountInString(p.Image) > MaxProductImageLength {
		return ErrProductImageTooLong
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	if p.Price.GreaterThan(MaxPrice) {
		return ErrPriceTooLarge
	}
	if !p.Price.Equal(p.Price.Round(PriceDecimalPlaces)) {
		return ErrPricePrecision
	}
	return nil
}

// ProductFields carries a create or partial update. Nil means "not provided".
type ProductFields struct {
	Name        *string
	Price       *decimal.Decimal
	Description *string
	Image       *string
}

// Apply copies the provided fields onto p.
func (f ProductFields) Apply(p *Product) {
	if f.Name != nil {
		p.Name = strings.TrimSpace(*f.Name)
	}
	if f.Price != nil {
		p.Price = *f.Price
	}
	if f.Description != nil {
		p.Description = *f.Description
	}
	if f.Image != nil {
		p.Image = *f.Image
	}
}

// PriceTable indexes the current price of each product by id.
func PriceTable(products map[uuid.UUID]*Product) map[uuid.UUID]decimal.Decimal {
	prices := make(map[uuid.UUID]decimal.Decimal, len(products))
	for id, p := range products {
		prices[id] = p.Price
	}
	return prices
}
