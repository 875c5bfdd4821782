// Package coupon implements read-only validation of discount codes against an
// order amount and the requesting user.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the order
	// amount, optionally capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the order amount.
	DiscountFixed DiscountType = "fixed"
)

// ErrNotFound is returned by repositories when no coupon matches a code.
var ErrNotFound = errors.New("coupon not found")

// Coupon defines a discount code's behaviour and eligibility constraints.
// Coupons are owned by an external admin process; this package only reads them.
type Coupon struct {
	ID           string
	Code         string
	DiscountType DiscountType
	// Discount is a percentage for DiscountPercentage and a currency amount
	// for DiscountFixed.
	Discount    decimal.Decimal
	MaxDiscount decimal.Decimal
	MinOrder    decimal.Decimal
	StartDate   *time.Time
	EndDate     *time.Time
	Active      bool
	// UsageLimit caps total redemptions across all users; zero means unlimited.
	UsageLimit int
	// PerUserLimit caps redemptions per user; zero means unlimited.
	PerUserLimit int
	Description  string
}

// Repository provides lookup of coupons and redemption counts. Redemptions
// are not tracked explicitly: they are counted from orders that reference the
// coupon's ID.
type Repository interface {
	// FindByCode matches the code case-insensitively.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	CountRedemptions(ctx context.Context, couponID string) (int, error)
	CountRedemptionsByUser(ctx context.Context, couponID, userID string) (int, error)
}
