package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Verdict is the outcome of validating a coupon code. Business rejections are
// reported through Valid=false and a user-facing Message, not through errors;
// errors are reserved for infrastructure failures.
type Verdict struct {
	Valid          bool
	Coupon         *Coupon
	DiscountAmount decimal.Decimal
	Message        string
}

// Validator validates a coupon code against an order amount and returns the
// computed discount.
type Validator interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal, userID string) (Verdict, error)
}

// RepoValidator implements Validator by looking up coupons from a Repository.
// Validation is read-only; redemption is recorded implicitly when an order
// referencing the coupon is placed.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate runs the eligibility checks in a fixed order, short-circuiting on
// the first failure so the user-facing message is deterministic: existence,
// active flag, date window, minimum order amount, global usage limit,
// per-user limit.
func (v *RepoValidator) Validate(ctx context.Context, code string, orderAmount decimal.Decimal, userID string) (Verdict, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rejected("Invalid coupon code"), nil
		}
		return Verdict{}, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return rejected("This coupon is not active"), nil
	}

	now := v.now()
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return rejected(fmt.Sprintf("This coupon is valid from %s", c.StartDate.Format("2 Jan 2006"))), nil
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return rejected("This coupon has expired"), nil
	}

	if orderAmount.LessThan(c.MinOrder) {
		return rejected(fmt.Sprintf("Minimum order amount of ₹%s required", c.MinOrder.StringFixed(0))), nil
	}

	if c.UsageLimit > 0 {
		used, err := v.repo.CountRedemptions(ctx, c.ID)
		if err != nil {
			return Verdict{}, errors.Wrap(err, "count redemptions")
		}
		if used >= c.UsageLimit {
			return rejected("This coupon has reached its usage limit"), nil
		}
	}

	if userID != "" && c.PerUserLimit > 0 {
		used, err := v.repo.CountRedemptionsByUser(ctx, c.ID, userID)
		if err != nil {
			return Verdict{}, errors.Wrap(err, "count user redemptions")
		}
		if used >= c.PerUserLimit {
			return rejected("You have already used this coupon the maximum number of times"), nil
		}
	}

	amount, err := discountFor(c, orderAmount)
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{
		Valid:          true,
		Coupon:         c,
		DiscountAmount: amount,
		Message:        "Coupon applied successfully",
	}, nil
}

// discountFor computes the discount amount for a valid coupon.
//   - percentage: floor(orderAmount * discount / 100), capped at MaxDiscount
//     when set.
//   - fixed: min(discount, orderAmount), so it never exceeds the order.
func discountFor(c *Coupon, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	switch c.DiscountType {
	case DiscountPercentage:
		amount := orderAmount.Mul(c.Discount).Div(hundred).Floor()
		if c.MaxDiscount.IsPositive() && amount.GreaterThan(c.MaxDiscount) {
			amount = c.MaxDiscount
		}
		if amount.GreaterThan(orderAmount) {
			amount = orderAmount
		}
		return amount, nil
	case DiscountFixed:
		return decimal.Min(c.Discount, orderAmount), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
}

func rejected(message string) Verdict {
	return Verdict{Valid: false, DiscountAmount: decimal.Zero, Message: message}
}
