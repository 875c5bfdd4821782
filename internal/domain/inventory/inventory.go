// Package inventory guards product stock. The advisory check surfaces stock
// problems before checkout; the authoritative check-and-decrement runs inside
// the checkout transaction and is all-or-nothing.
package inventory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Line is a stock request for one product.
type Line struct {
	ProductID string
	Quantity  int
}

// InsufficientStockError names the first product whose requested quantity
// exceeds available stock. When returned from Reduce, no stock was changed
// for any line.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available, %d requested",
		e.ProductID, e.Available, e.Requested)
}

// Reducer atomically decrements stock for every line, or none of them.
// Implementations rely on the store's transaction primitive so concurrent
// checkouts racing on the same product cannot both succeed when their
// combined quantity exceeds stock.
type Reducer interface {
	Reduce(ctx context.Context, lines []Line) error
}

// Issue describes one problematic cart line found by a pre-flight check.
type Issue struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

// Report is the outcome of an advisory inventory check.
type Report struct {
	OK     bool    `json:"ok"`
	Issues []Issue `json:"issues,omitempty"`
}

// StockReader provides current stock levels for a set of products.
type StockReader interface {
	StockLevels(ctx context.Context, ids []string) (map[string]StockLevel, error)
}

// StockLevel is a product's name and available stock.
type StockLevel struct {
	Name  string
	Stock int
}

// Checker performs advisory pre-flight stock checks. Its result can be stale
// by the time checkout runs; the transaction in Reduce remains authoritative.
type Checker struct {
	stocks StockReader
}

// NewChecker creates a Checker reading stock through the given StockReader.
func NewChecker(stocks StockReader) *Checker {
	return &Checker{stocks: stocks}
}

// CheckCart reports every line whose product is missing or short on stock.
// It never mutates anything.
func (c *Checker) CheckCart(ctx context.Context, lines []Line) (Report, error) {
	if len(lines) == 0 {
		return Report{OK: true}, nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	levels, err := c.stocks.StockLevels(ctx, ids)
	if err != nil {
		return Report{}, errors.Wrap(err, "read stock levels")
	}

	// Requests for the same product across different size/color lines draw
	// from one stock pool, so they are summed before comparison.
	requested := make(map[string]int, len(lines))
	for _, l := range lines {
		requested[l.ProductID] += l.Quantity
	}

	var issues []Issue
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true

		level, ok := levels[l.ProductID]
		if !ok {
			issues = append(issues, Issue{
				ProductID: l.ProductID,
				Requested: requested[l.ProductID],
				Reason:    "product no longer available",
			})
			continue
		}
		if level.Stock < requested[l.ProductID] {
			issues = append(issues, Issue{
				ProductID: l.ProductID,
				Name:      level.Name,
				Requested: requested[l.ProductID],
				Available: level.Stock,
				Reason:    "insufficient stock",
			})
		}
	}

	return Report{OK: len(issues) == 0, Issues: issues}, nil
}
