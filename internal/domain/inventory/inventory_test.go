package inventory

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStockReader struct {
	levels map[string]StockLevel
	err    error
}

func (m *mockStockReader) StockLevels(_ context.Context, _ []string) (map[string]StockLevel, error) {
	return m.levels, m.err
}

func TestCheckCart(t *testing.T) {
	reader := &mockStockReader{levels: map[string]StockLevel{
		"p1": {Name: "Oxford Shirt", Stock: 5},
		"p2": {Name: "Chinos", Stock: 0},
	}}
	checker := NewChecker(reader)

	t.Run("all lines satisfiable", func(t *testing.T) {
		report, err := checker.CheckCart(context.Background(), []Line{
			{ProductID: "p1", Quantity: 3},
		})
		require.NoError(t, err)
		assert.True(t, report.OK)
		assert.Empty(t, report.Issues)
	})

	t.Run("short stock reported with available count", func(t *testing.T) {
		report, err := checker.CheckCart(context.Background(), []Line{
			{ProductID: "p1", Quantity: 6},
			{ProductID: "p2", Quantity: 1},
		})
		require.NoError(t, err)
		assert.False(t, report.OK)
		require.Len(t, report.Issues, 2)
		assert.Equal(t, 5, report.Issues[0].Available)
		assert.Equal(t, 6, report.Issues[0].Requested)
		assert.Equal(t, "Chinos", report.Issues[1].Name)
	})

	t.Run("same product across variants draws one pool", func(t *testing.T) {
		// 3 + 3 of p1 exceeds the 5 in stock even though each line fits.
		report, err := checker.CheckCart(context.Background(), []Line{
			{ProductID: "p1", Quantity: 3},
			{ProductID: "p1", Quantity: 3},
		})
		require.NoError(t, err)
		assert.False(t, report.OK)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, 6, report.Issues[0].Requested)
	})

	t.Run("missing product reported", func(t *testing.T) {
		report, err := checker.CheckCart(context.Background(), []Line{
			{ProductID: "gone", Quantity: 1},
		})
		require.NoError(t, err)
		assert.False(t, report.OK)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, "product no longer available", report.Issues[0].Reason)
	})

	t.Run("empty cart is trivially ok", func(t *testing.T) {
		report, err := checker.CheckCart(context.Background(), nil)
		require.NoError(t, err)
		assert.True(t, report.OK)
	})

	t.Run("reader failure propagates", func(t *testing.T) {
		broken := NewChecker(&mockStockReader{err: errors.New("timeout")})
		_, err := broken.CheckCart(context.Background(), []Line{{ProductID: "p1", Quantity: 1}})
		require.Error(t, err)
	})
}
