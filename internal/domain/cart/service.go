package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/threadline/storefront/internal/domain/product"
)

// Service exposes cart operations backed by a Repository. Prices are always
// snapshotted from the catalog at add time, never trusted from the client.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Get returns the user's current cart lines.
func (s *Service) Get(ctx context.Context, userID string) ([]Item, error) {
	items, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return items, nil
}

// AddItem looks up the product, snapshots its price, and merges the line into
// the user's cart.
func (s *Service) AddItem(ctx context.Context, userID string, key Key, quantity int) ([]Item, error) {
	p, err := s.products.GetByID(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}

	items, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	image := ""
	if len(p.Images) > 0 {
		image = p.Images[0]
	}

	items = Add(items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  quantity,
		Size:      key.Size,
		Color:     key.Color,
		Image:     image,
	})

	if err := s.carts.Save(ctx, userID, items); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return items, nil
}

// UpdateQuantity sets the quantity of an existing line; zero removes it.
func (s *Service) UpdateQuantity(ctx context.Context, userID string, key Key, quantity int) ([]Item, error) {
	items, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	items, err = SetQuantity(items, key, quantity)
	if err != nil {
		return nil, err
	}

	if err := s.carts.Save(ctx, userID, items); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return items, nil
}

// RemoveItem deletes a line from the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID string, key Key) ([]Item, error) {
	items, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	items, err = Remove(items, key)
	if err != nil {
		return nil, err
	}

	if err := s.carts.Save(ctx, userID, items); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return items, nil
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}

// Subtotal returns the sum of price * quantity across the given lines.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}
