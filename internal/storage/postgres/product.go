package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/storefront/internal/domain/inventory"
	"github.com/threadline/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, stock, category, sizes, colors, images
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, stock, category, sizes, colors, images
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, price, stock, category, sizes, colors, images
		FROM products WHERE id = ANY($1)`

	stockLevelsSQL = `SELECT id, name, stock FROM products WHERE id = ANY($1)`

	upsertProductSQL = `INSERT INTO products (id, name, price, stock, category, sizes, colors, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			category = EXCLUDED.category,
			sizes = EXCLUDED.sizes,
			colors = EXCLUDED.colors,
			images = EXCLUDED.images,
			updated_at = now()`
)

var (
	_ product.Repository    = (*ProductRepository)(nil)
	_ inventory.StockReader = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL. It
// also serves as the inventory pre-flight's stock reader.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// StockLevels returns the name and current stock for each existing product in
// ids. Missing products are simply absent from the result.
func (r *ProductRepository) StockLevels(ctx context.Context, ids []string) (map[string]inventory.StockLevel, error) {
	rows, err := r.pool.Query(ctx, stockLevelsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("reading stock levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[string]inventory.StockLevel, len(ids))
	for rows.Next() {
		var (
			id    string
			level inventory.StockLevel
		)
		if err := rows.Scan(&id, &level.Name, &level.Stock); err != nil {
			return nil, fmt.Errorf("scanning stock level: %w", err)
		}
		levels[id] = level
	}
	return levels, rows.Err()
}

// Upsert inserts or replaces a catalog entry. Used by the seed tool.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Price, p.Stock, p.Category, p.Sizes, p.Colors, p.Images)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Stock, &p.Category,
		&p.Sizes, &p.Colors, &p.Images,
	)
	return p, err
}
