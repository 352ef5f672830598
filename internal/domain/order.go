package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order. Paid is the only,
// terminal, state: checkout is simulated and marks orders paid at once.
type OrderStatus string

const OrderStatusPaid OrderStatus = "Paid"

var ErrEmptyOrder = errors.New("order must contain at least one item")

// OrderItem is the immutable purchase snapshot of one cart line.
type OrderItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Order is created once by checkout and never mutated afterwards.
type Order struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"userId"`
	Items      []OrderItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     OrderStatus     `json:"status"`
	OrderedAt  time.Time       `json:"orderedAt"`
}

// NewOrder snapshots lines at the prices in products. Every line must have
// its product present in products.
func NewOrder(userID uuid.UUID, lines []CartLine, products map[uuid.UUID]*Product, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	order := &Order{
		ID:         uuid.New(),
		UserID:     userID,
		Items:      make([]OrderItem, 0, len(lines)),
		TotalPrice: decimal.Zero,
		Status:     OrderStatusPaid,
		OrderedAt:  now,
	}

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, errors.New("order line references unknown product " + line.ProductID.String())
		}
		order.Items = append(order.Items, OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
		})
		order.TotalPrice = order.TotalPrice.Add(LineTotal(product.Price, line.Quantity))
	}

	return order, nil
}

// ProductIDs lists the purchased products in snapshot order.
func (o *Order) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ReceiptItem is a purchased line with the product's display fields resolved.
// Price and Quantity always come from the order snapshot.
type ReceiptItem struct {
	ProductID   uuid.UUID       `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Available   bool            `json:"available"`
}

// Receipt is the checkout view of an order.
type Receipt struct {
	OrderID uuid.UUID       `json:"orderId"`
	Date    time.Time       `json:"date"`
	Total   decimal.Decimal `json:"total"`
	Items   []ReceiptItem   `json:"items"`
	Status  OrderStatus     `json:"status"`
}

// Receipt resolves display fields from products, falling back to the
// snapshot name for products deleted since the purchase.
func (o *Order) Receipt(products map[uuid.UUID]*Product) *Receipt {
	receipt := &Receipt{
		OrderID: o.ID,
		Date:    o.OrderedAt,
		Total:   o.TotalPrice,
		Items:   make([]ReceiptItem, 0, len(o.Items)),
		Status:  o.Status,
	}

	for _, item := range o.Items {
		ri := ReceiptItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
		}
		if p, ok := products[item.ProductID]; ok {
			ri.Name = p.Name
			ri.Description = p.Description
			ri.Image = p.Image
			ri.Available = true
		}
		receipt.Items = append(receipt.Items, ri)
	}

	return receipt
}
