// Package cart holds a customer's pending line items. The cart is private to
// one user session and never contended; it only touches shared state at
// checkout.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned when updating or removing a line that is not in
// the cart.
var ErrItemNotFound = errors.New("cart item not found")

// Key uniquely identifies a cart line. Adding an item with an existing key
// increments the line's quantity instead of creating a duplicate.
type Key struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Item is a single cart line. Price is a snapshot taken when the item was
// added; later catalog price changes do not affect lines already in the cart.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Image     string          `json:"image"`
}

// Key returns the line's uniqueness key.
func (i Item) Key() Key {
	return Key{ProductID: i.ProductID, Size: i.Size, Color: i.Color}
}

// Repository persists carts per user.
type Repository interface {
	Get(ctx context.Context, userID string) ([]Item, error)
	Save(ctx context.Context, userID string, items []Item) error
	Clear(ctx context.Context, userID string) error
}

// Add merges item into items: an existing (productID, size, color) line has
// its quantity incremented, otherwise the item is appended. Line order is
// preserved. Quantities below one are normalized to one.
func Add(items []Item, item Item) []Item {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	key := item.Key()
	for i := range items {
		if items[i].Key() == key {
			items[i].Quantity += item.Quantity
			return items
		}
	}
	return append(items, item)
}

// SetQuantity replaces the quantity of the line identified by key. A quantity
// of zero or less removes the line entirely, matching the "trash vs minus"
// behaviour of decrementing a quantity-1 line.
func SetQuantity(items []Item, key Key, quantity int) ([]Item, error) {
	for i := range items {
		if items[i].Key() == key {
			if quantity <= 0 {
				return append(items[:i], items[i+1:]...), nil
			}
			items[i].Quantity = quantity
			return items, nil
		}
	}
	return nil, ErrItemNotFound
}

// Remove deletes the line identified by key.
func Remove(items []Item, key Key) ([]Item, error) {
	for i := range items {
		if items[i].Key() == key {
			return append(items[:i], items[i+1:]...), nil
		}
	}
	return nil, ErrItemNotFound
}
