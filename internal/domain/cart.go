package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxLineQuantity bounds a single cart line and the order item it becomes.
const MaxLineQuantity = 9999

var ErrQuantityTooLarge = fmt.Errorf("quantity per product cannot exceed %d", MaxLineQuantity)

// CartLine is one (product, quantity) pair. Quantity is always >= 1.
type CartLine struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// Cart is the per-user mutable cart document.
//
// TotalPrice is a cached value derived from live product prices; it is
// recomputed on every mutation and is never authoritative. Version is the
// optimistic concurrency token; zero means the cart has never been stored.
type Cart struct {
	UserID     uuid.UUID       `json:"userId"`
	Items      []CartLine      `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Version    int64           `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// NewCart returns an empty, not yet persisted cart.
func NewCart(userID uuid.UUID, now time.Time) *Cart {
	return &Cart{
		UserID:     userID,
		Items:      []CartLine{},
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsNew reports whether the cart has never been stored.
func (c *Cart) IsNew() bool {
	return c.Version == 0
}

// AddLine merges qty into the line for productID, creating it if needed.
// Quantities below 1 count as 1. A line may not grow past MaxLineQuantity;
// the cart is left unchanged when it would.
func (c *Cart) AddLine(productID uuid.UUID, qty int) error {
	if qty < 1 {
		qty = 1
	}
	if qty > MaxLineQuantity {
		return ErrQuantityTooLarge
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			if c.Items[i].Quantity > MaxLineQuantity-qty {
				return ErrQuantityTooLarge
			}
			c.Items[i].Quantity += qty
			return nil
		}
	}
	c.Items = append(c.Items, CartLine{ProductID: productID, Quantity: qty})
	return nil
}

// RemoveLine drops the line for productID and reports whether one existed.
func (c *Cart) RemoveLine(productID uuid.UUID) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveLines drops every line whose product is in ids.
func (c *Cart) RemoveLines(ids []uuid.UUID) {
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := c.Items[:0]
	for _, line := range c.Items {
		if _, ok := drop[line.ProductID]; !ok {
			kept = append(kept, line)
		}
	}
	c.Items = kept
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []CartLine{}
	c.TotalPrice = decimal.Zero
}

// Line returns the line for productID, if any.
func (c *Cart) Line(productID uuid.UUID) (CartLine, bool) {
	for _, line := range c.Items {
		if line.ProductID == productID {
			return line, true
		}
	}
	return CartLine{}, false
}

// ProductIDs lists the products referenced by the cart in line order.
func (c *Cart) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Items))
	for _, line := range c.Items {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// Touch records a mutation time.
func (c *Cart) Touch(now time.Time) {
	c.UpdatedAt = now
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartLine, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

// Recompute sets TotalPrice to the sum of price x quantity over the lines,
// using prices as the live price table. Lines whose product is absent from
// prices are dropped; their product ids are returned.
func Recompute(c *Cart, prices map[uuid.UUID]decimal.Decimal) []uuid.UUID {
	var orphaned []uuid.UUID

	total := decimal.Zero
	kept := c.Items[:0]
	for _, line := range c.Items {
		price, ok := prices[line.ProductID]
		if !ok {
			orphaned = append(orphaned, line.ProductID)
			continue
		}
		total = total.Add(LineTotal(price, line.Quantity))
		kept = append(kept, line)
	}

	c.Items = kept
	c.TotalPrice = total
	return orphaned
}

// LineTotal is price x quantity.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// CartViewLine is a cart line with its product resolved for display.
type CartViewLine struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product"`
}

// CartView is what the presentation layer receives for a cart.
type CartView struct {
	UserID           uuid.UUID       `json:"userId"`
	Items            []CartViewLine  `json:"items"`
	TotalPrice       decimal.Decimal `json:"totalPrice"`
	UnavailableItems []uuid.UUID     `json:"unavailableItems,omitempty"`
}

// NewCartView pairs each line with its product. products must cover every line.
func NewCartView(c *Cart, products map[uuid.UUID]*Product, unavailable []uuid.UUID) *CartView {
	view := &CartView{
		UserID:           c.UserID,
		Items:            make([]CartViewLine, 0, len(c.Items)),
		TotalPrice:       c.TotalPrice,
		UnavailableItems: unavailable,
	}
	for _, line := range c.Items {
		view.Items = append(view.Items, CartViewLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   products[line.ProductID],
		})
	}
	return view
}
