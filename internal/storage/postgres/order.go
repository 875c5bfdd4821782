package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/storefront/internal/domain/inventory"
	"github.com/threadline/storefront/internal/domain/order"
)

const (
	lockStockSQL = `SELECT name, stock FROM products WHERE id = $1 FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1`

	nextOrderNumberSQL = `SELECT nextval('order_number_seq')`

	insertOrderSQL = `INSERT INTO orders
			(id, order_number, user_id, email, phone, items, shipping_address,
			 payment_method, payment_status, status,
			 subtotal, discount, shipping, gst, total,
			 coupon_id, coupon_code, coupon_discount, order_notes,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	getOrderByIDSQL = `SELECT id, order_number, user_id, email, phone, items, shipping_address,
			payment_method, payment_status, status,
			subtotal, discount, shipping, gst, total,
			coupon_id, coupon_code, coupon_discount, order_notes,
			created_at, updated_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, order_number, user_id, email, phone, items, shipping_address,
			payment_method, payment_status, status,
			subtotal, discount, shipping, gst, total,
			coupon_id, coupon_code, coupon_discount, order_notes,
			created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Place persists the order and decrements stock for every line in one
// transaction. Stock rows are locked in a deterministic order to avoid
// deadlocks between concurrent checkouts; if any line exceeds available
// stock, the transaction rolls back with *inventory.InsufficientStockError
// and no stock changes.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := reduceStock(ctx, tx, checkoutLines(o.Items)); err != nil {
		return err
	}

	var seq int64
	if err := tx.QueryRow(ctx, nextOrderNumberSQL).Scan(&seq); err != nil {
		return fmt.Errorf("next order number: %w", err)
	}
	o.OrderNumber = order.FormatOrderNumber(seq)

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	var couponID *string
	if o.CouponID != "" {
		couponID = &o.CouponID
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.OrderNumber, o.UserID, o.Email, o.Phone, itemsJSON, addressJSON,
		o.PaymentMethod, o.PaymentStatus, string(o.Status),
		o.Pricing.Subtotal, o.Pricing.Discount, o.Pricing.Shipping, o.Pricing.GST, o.Pricing.Total,
		couponID, o.CouponCode, o.CouponDiscount, o.OrderNotes,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout tx: %w", err)
	}
	return nil
}

// reduceStock locks each product row, verifies availability, and decrements.
// Lines for the same product across size/color variants draw from one pool
// and are aggregated before the check.
func reduceStock(ctx context.Context, tx pgx.Tx, lines []inventory.Line) error {
	for _, line := range lines {
		var (
			name  string
			stock int
		)
		err := tx.QueryRow(ctx, lockStockSQL, line.ProductID).Scan(&name, &stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &inventory.InsufficientStockError{
					ProductID: line.ProductID,
					Requested: line.Quantity,
				}
			}
			return fmt.Errorf("locking stock for %q: %w", line.ProductID, err)
		}

		if stock < line.Quantity {
			return &inventory.InsufficientStockError{
				ProductID: line.ProductID,
				Name:      name,
				Available: stock,
				Requested: line.Quantity,
			}
		}

		if _, err := tx.Exec(ctx, decrementStockSQL, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("decrementing stock for %q: %w", line.ProductID, err)
		}
	}
	return nil
}

// checkoutLines aggregates order items into per-product stock lines, sorted
// by product ID for a stable lock order.
func checkoutLines(items []order.Item) []inventory.Line {
	perProduct := make(map[string]int, len(items))
	for _, item := range items {
		perProduct[item.ProductID] += item.Quantity
	}

	lines := make([]inventory.Line, 0, len(perProduct))
	for id, qty := range perProduct {
		lines = append(lines, inventory.Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, most recent first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]order.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus sets the order's status. Transition legality is checked by the
// order service before calling this.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		itemsJSON   []byte
		addressJSON []byte
		status      string
		couponID    *string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Email, &o.Phone, &itemsJSON, &addressJSON,
		&o.PaymentMethod, &o.PaymentStatus, &status,
		&o.Pricing.Subtotal, &o.Pricing.Discount, &o.Pricing.Shipping, &o.Pricing.GST, &o.Pricing.Total,
		&couponID, &o.CouponCode, &o.CouponDiscount, &o.OrderNotes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	if couponID != nil {
		o.CouponID = *couponID
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	return o, nil
}
