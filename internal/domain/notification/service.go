package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/threadline/storefront/internal/domain/order"
)

// Service wraps the repository with unread-count push delivery.
type Service struct {
	repo Repository
	hub  *Hub
	now  func() time.Time
}

// NewService creates a notification Service.
func NewService(repo Repository, hub *Hub) *Service {
	return &Service{repo: repo, hub: hub, now: time.Now}
}

// Create persists a notification and pushes the owner's new unread count to
// live subscribers. Admin notifications have no per-user counter.
func (s *Service) Create(ctx context.Context, n *Notification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if n.Type == "" {
		n.Type = TypeGeneral
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return "", errors.Wrap(err, "create notification")
	}

	if n.Audience == AudienceUser {
		s.publishUnread(ctx, n.UserID)
	}
	return n.ID, nil
}

// List returns the user's notifications ordered by recency.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return s.repo.List(ctx, AudienceUser, userID, limit)
}

// ListAdmin returns admin notifications ordered by recency.
func (s *Service) ListAdmin(ctx context.Context, limit int) ([]Notification, error) {
	return s.repo.List(ctx, AudienceAdmin, "", limit)
}

// MarkRead flips one of the user's notifications to read and pushes the
// updated count. Notifications owned by anyone else report ErrNotFound.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkRead(ctx, AudienceUser, userID, id); err != nil {
		return err
	}
	s.publishUnread(ctx, userID)
	return nil
}

// MarkReadAdmin flips an admin notification to read. The admin inbox has no
// per-user counter, so nothing is pushed.
func (s *Service) MarkReadAdmin(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, AudienceAdmin, "", id)
}

// MarkAllRead flips every unread notification for the user and returns how
// many were changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.publishUnread(ctx, userID)
	}
	return count, nil
}

// Subscribe returns a live unread-count channel for the user, primed with the
// current count, and a cancel function that must be called when the consumer
// goes away.
func (s *Service) Subscribe(ctx context.Context, userID string) (<-chan int, func(), error) {
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "count unread")
	}

	ch, cancel := s.hub.Subscribe(userID)
	s.hub.Publish(userID, unread)
	return ch, cancel, nil
}

func (s *Service) publishUnread(ctx context.Context, userID string) {
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		// Count refresh is best-effort; the next change will retry.
		return
	}
	s.hub.Publish(userID, unread)
}

// OrderNotifier adapts the Service to the order domain's Notifier interface.
type OrderNotifier struct {
	svc *Service
}

// NewOrderNotifier creates the adapter used by the order service.
func NewOrderNotifier(svc *Service) *OrderNotifier {
	return &OrderNotifier{svc: svc}
}

var _ order.Notifier = (*OrderNotifier)(nil)

// OrderPlaced creates the admin-facing notification for a new order.
func (n *OrderNotifier) OrderPlaced(ctx context.Context, o *order.Order) error {
	_, err := n.svc.Create(ctx, &Notification{
		Audience: AudienceAdmin,
		Type:     TypeOrder,
		Title:    "New order received",
		Message:  fmt.Sprintf("Order %s placed for ₹%s", o.OrderNumber, o.Pricing.Total.StringFixed(0)),
		OrderID:  o.ID,
	})
	return err
}

// OrderStatusChanged tells the customer about a fulfilment update.
func (n *OrderNotifier) OrderStatusChanged(ctx context.Context, o *order.Order) error {
	typ := TypeOrder
	if o.Status == order.StatusShipped || o.Status == order.StatusDelivered {
		typ = TypeShipment
	}

	_, err := n.svc.Create(ctx, &Notification{
		Audience: AudienceUser,
		UserID:   o.UserID,
		Type:     typ,
		Title:    fmt.Sprintf("Order %s", o.Status),
		Message:  fmt.Sprintf("Your order %s is now %s", o.OrderNumber, o.Status),
		OrderID:  o.ID,
	})
	return err
}
