package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/storefront/internal/domain/address"
)

const (
	listAddressesSQL = `SELECT id, user_id, type, address, city, state, pincode, is_default
		FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at`

	getAddressSQL = `SELECT id, user_id, type, address, city, state, pincode, is_default
		FROM addresses WHERE id = $1`

	insertAddressSQL = `INSERT INTO addresses (id, user_id, type, address, city, state, pincode, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateAddressSQL = `UPDATE addresses
		SET type = $3, address = $4, city = $5, state = $6, pincode = $7
		WHERE id = $1 AND user_id = $2`

	deleteAddressSQL = `DELETE FROM addresses WHERE id = $2 AND user_id = $1`

	unsetDefaultSQL = `UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`

	setDefaultSQL = `UPDATE addresses SET is_default = TRUE WHERE id = $2 AND user_id = $1`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL. The
// single-default invariant is enforced both here (unset-then-set in one
// transaction) and by a partial unique index.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// ListByUser returns the user's address book, default first.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

// GetByID returns a single address.
func (r *AddressRepository) GetByID(ctx context.Context, id string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}

// Create inserts a new address. A new default demotes the existing one in the
// same transaction.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin address tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if a.IsDefault {
		if _, err := tx.Exec(ctx, unsetDefaultSQL, a.UserID); err != nil {
			return fmt.Errorf("unsetting default address: %w", err)
		}
	}

	_, err = tx.Exec(ctx, insertAddressSQL,
		a.ID, a.UserID, a.Type, a.Address, a.City, a.State, a.Pincode, a.IsDefault)
	if err != nil {
		return fmt.Errorf("creating address: %w", err)
	}

	return tx.Commit(ctx)
}

// Update rewrites an address's fields. The default flag is changed only
// through SetDefault.
func (r *AddressRepository) Update(ctx context.Context, a *address.Address) error {
	tag, err := r.pool.Exec(ctx, updateAddressSQL,
		a.ID, a.UserID, a.Type, a.Address, a.City, a.State, a.Pincode)
	if err != nil {
		return fmt.Errorf("updating address %q: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

// Delete removes an address from the user's book.
func (r *AddressRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, deleteAddressSQL, userID, id)
	if err != nil {
		return fmt.Errorf("deleting address %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

// SetDefault makes the address the user's default, demoting any previous
// default atomically.
func (r *AddressRepository) SetDefault(ctx context.Context, userID, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set-default tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, unsetDefaultSQL, userID); err != nil {
		return fmt.Errorf("unsetting default address: %w", err)
	}

	tag, err := tx.Exec(ctx, setDefaultSQL, userID, id)
	if err != nil {
		return fmt.Errorf("setting default address %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}

	return tx.Commit(ctx)
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Address, &a.City, &a.State, &a.Pincode, &a.IsDefault)
	return a, err
}
