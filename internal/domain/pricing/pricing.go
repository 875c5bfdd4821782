// Package pricing derives order totals from cart contents and an already
// validated discount. All amounts are in whole currency units (INR).
package pricing

import "github.com/shopspring/decimal"

var (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(1000)
	// ShippingFee is the flat fee charged below the free-shipping threshold.
	ShippingFee = decimal.NewFromInt(99)
	// GSTRate is the flat Goods and Services Tax rate applied to the
	// discounted subtotal.
	GSTRate = decimal.NewFromFloat(0.18)
)

// Item is a priced cart line for quote calculation.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Quote is the full pricing breakdown for a cart.
//
// Invariant: Total = (Subtotal - Discount) + GST + Shipping.
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	GST      decimal.Decimal `json:"gst"`
	Total    decimal.Decimal `json:"total"`
}

// Compute derives the quote for the given items and discount. The discount is
// computed upstream by the coupon validator and is never re-derived here.
// Compute is pure and idempotent; callers re-run it on every cart or coupon
// change.
func Compute(items []Item, discount decimal.Decimal) Quote {
	subtotal := Subtotal(items)

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	discounted := subtotal.Sub(discount)

	shipping := ShippingFee
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	// Half-up to the nearest whole currency unit.
	gst := discounted.Mul(GSTRate).Round(0)

	return Quote{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		GST:      gst,
		Total:    discounted.Add(gst).Add(shipping),
	}
}

// Subtotal returns the sum of price * quantity across all items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}
