package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/storefront/internal/domain/cart"
)

const (
	getCartSQL = `SELECT items FROM carts WHERE user_id = $1`

	saveCartSQL = `INSERT INTO carts (user_id, items, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = now()`

	clearCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository with one JSONB document per user,
// the server-side counterpart of the storefront's device-local cart storage.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart lines; a user with no cart row has an empty cart.
func (r *CartRepository) Get(ctx context.Context, userID string) ([]cart.Item, error) {
	var itemsJSON []byte
	err := r.pool.QueryRow(ctx, getCartSQL, userID).Scan(&itemsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading cart for user %q: %w", userID, err)
	}

	var items []cart.Item
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	return items, nil
}

// Save replaces the user's cart contents.
func (r *CartRepository) Save(ctx context.Context, userID string, items []cart.Item) error {
	if items == nil {
		items = []cart.Item{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	if _, err := r.pool.Exec(ctx, saveCartSQL, userID, itemsJSON); err != nil {
		return fmt.Errorf("saving cart for user %q: %w", userID, err)
	}
	return nil
}

// Clear removes the user's cart row.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}
