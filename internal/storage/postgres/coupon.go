package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, discount, max_discount, min_order,
			start_date, end_date, active, usage_limit, per_user_limit, description
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	countRedemptionsSQL = `SELECT COUNT(*) FROM orders
		WHERE coupon_id = $1 AND status <> 'Cancelled'`

	countRedemptionsByUserSQL = `SELECT COUNT(*) FROM orders
		WHERE coupon_id = $1 AND user_id = $2 AND status <> 'Cancelled'`

	upsertCouponSQL = `INSERT INTO coupons
			(id, code, discount_type, discount, max_discount, min_order,
			 start_date, end_date, active, usage_limit, per_user_limit, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			discount = EXCLUDED.discount,
			max_discount = EXCLUDED.max_discount,
			min_order = EXCLUDED.min_order,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			active = EXCLUDED.active,
			usage_limit = EXCLUDED.usage_limit,
			per_user_limit = EXCLUDED.per_user_limit,
			description = EXCLUDED.description`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Redemption counts are derived from non-cancelled orders referencing the
// coupon; there is no separate usage table to keep in sync.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code, case-insensitively.
// Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// CountRedemptions counts non-cancelled orders that used the coupon.
func (r *CouponRepository) CountRedemptions(ctx context.Context, couponID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countRedemptionsSQL, couponID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting redemptions for coupon %q: %w", couponID, err)
	}
	return count, nil
}

// CountRedemptionsByUser counts non-cancelled orders by one user that used
// the coupon.
func (r *CouponRepository) CountRedemptionsByUser(ctx context.Context, couponID, userID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countRedemptionsByUserSQL, couponID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting user redemptions for coupon %q: %w", couponID, err)
	}
	return count, nil
}

// Upsert inserts or updates a coupon, keyed by its case-folded code. Used by
// the seed and promo-ingest tools.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, string(c.DiscountType), c.Discount, c.MaxDiscount, c.MinOrder,
		c.StartDate, c.EndDate, c.Active, c.UsageLimit, c.PerUserLimit, c.Description,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.Discount, &c.MaxDiscount, &c.MinOrder,
		&c.StartDate, &c.EndDate, &c.Active, &c.UsageLimit, &c.PerUserLimit, &c.Description,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
