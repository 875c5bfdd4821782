// Package notification creates and delivers customer and admin notifications,
// including a live unread-count subscription for storefront badges.
package notification

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Audience selects which inbox a notification belongs to.
type Audience string

const (
	AudienceUser  Audience = "user"
	AudienceAdmin Audience = "admin"
)

// Type categorizes a notification for display.
type Type string

const (
	TypeOrder     Type = "order"
	TypePayment   Type = "payment"
	TypeShipment  Type = "shipment"
	TypePromotion Type = "promotion"
	TypeLowStock  Type = "lowStock"
	TypeGeneral   Type = "general"
)

// ErrNotFound is returned when a requested notification does not exist.
var ErrNotFound = errors.New("notification not found")

// Notification is a single inbox entry. Read is the only field that changes
// after creation; notifications are never deleted in normal flow.
type Notification struct {
	ID        string    `json:"id"`
	Audience  Audience  `json:"-"`
	UserID    string    `json:"userId,omitempty"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	OrderID   string    `json:"orderId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository persists notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// List returns notifications for an audience ordered by recency. For
	// AudienceUser, userID scopes the result; for AudienceAdmin it is ignored.
	List(ctx context.Context, audience Audience, userID string, limit int) ([]Notification, error)
	// MarkRead flips one notification to read. The audience and userID scope
	// the lookup so a notification can only be mutated by its owner; a
	// mismatch reports ErrNotFound.
	MarkRead(ctx context.Context, audience Audience, userID, id string) error
	// MarkAllRead returns the number of notifications flipped to read.
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}
