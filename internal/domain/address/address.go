// Package address manages a user's saved delivery addresses.
//
// Invariant: at most one address per user has IsDefault set; making an
// address the default unsets all others in the same transaction.
package address

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested address does not exist.
	ErrNotFound = errors.New("address not found")
	// ErrInvalid is returned when required address fields are missing.
	ErrInvalid = errors.New("address, city, state and pincode are required")
)

// Address is one entry in a user's address book.
type Address struct {
	ID        string `json:"id"`
	UserID    string `json:"-"`
	Type      string `json:"type"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"isDefault"`
}

// Validate checks the required fields and normalizes the type label.
func (a *Address) Validate() error {
	if strings.TrimSpace(a.Address) == "" ||
		strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.State) == "" ||
		strings.TrimSpace(a.Pincode) == "" {
		return ErrInvalid
	}
	switch a.Type {
	case "Home", "Office", "Other":
	case "":
		a.Type = "Home"
	default:
		return errors.Errorf("unknown address type: %q", a.Type)
	}
	return nil
}

// Repository persists address books. SetDefault atomically clears the
// previous default for the user.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	GetByID(ctx context.Context, id string) (*Address, error)
	Create(ctx context.Context, a *Address) error
	Update(ctx context.Context, a *Address) error
	Delete(ctx context.Context, userID, id string) error
	SetDefault(ctx context.Context, userID, id string) error
}
