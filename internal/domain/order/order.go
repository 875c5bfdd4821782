// Package order implements order placement, the order status state machine,
// and customer cancellation.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/threadline/storefront/internal/domain/pricing"
)

// PaymentMethodCOD is the only functional payment method. Other methods shown
// by the storefront are display-only placeholders and are rejected here.
const PaymentMethodCOD = "cod"

// Item is a purchased line, snapshotted from the cart at checkout.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Image     string          `json:"image"`
}

// ShippingAddress is the delivery address snapshot embedded in an order.
type ShippingAddress struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Order is a placed customer order with its full pricing snapshot.
//
// Invariant: Total = (Subtotal - Discount) + GST + Shipping.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Email           string
	Phone           string
	Items           []Item
	ShippingAddress ShippingAddress
	PaymentMethod   string
	PaymentStatus   string
	Status          Status
	Pricing         pricing.Quote
	CouponID        string
	CouponCode      string
	CouponDiscount  decimal.Decimal
	OrderNotes      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FormatOrderNumber renders a sequence value as the public order number:
// "OD" followed by ten digits. The sequence is monotonic, so numbers never
// collide; the orders table additionally enforces uniqueness.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("OD%010d", seq)
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Place persists the order and decrements stock for every line inside a
	// single transaction. On success the order's OrderNumber is assigned from
	// a monotonic sequence. When any line exceeds available stock, it fails
	// with *inventory.InsufficientStockError and no stock is changed.
	Place(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// Notifier receives order lifecycle events. Implementations fan the events
// out to the notification service.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order) error
	OrderStatusChanged(ctx context.Context, o *Order) error
}
