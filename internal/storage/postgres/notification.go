package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/storefront/internal/domain/notification"
)

const (
	insertNotificationSQL = `INSERT INTO notifications
			(id, audience, user_id, type, title, message, read, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listUserNotificationsSQL = `SELECT id, audience, user_id, type, title, message, read, order_id, created_at
		FROM notifications WHERE audience = 'user' AND user_id = $1
		ORDER BY created_at DESC LIMIT $2`

	listAdminNotificationsSQL = `SELECT id, audience, user_id, type, title, message, read, order_id, created_at
		FROM notifications WHERE audience = 'admin'
		ORDER BY created_at DESC LIMIT $1`

	markUserReadSQL = `UPDATE notifications SET read = TRUE
		WHERE id = $1 AND audience = 'user' AND user_id = $2 AND NOT read`

	markAdminReadSQL = `UPDATE notifications SET read = TRUE
		WHERE id = $1 AND audience = 'admin' AND NOT read`

	userNotificationExistsSQL = `SELECT EXISTS (SELECT 1 FROM notifications
		WHERE id = $1 AND audience = 'user' AND user_id = $2)`

	adminNotificationExistsSQL = `SELECT EXISTS (SELECT 1 FROM notifications
		WHERE id = $1 AND audience = 'admin')`

	markAllReadSQL = `UPDATE notifications SET read = TRUE
		WHERE audience = 'user' AND user_id = $1 AND NOT read`

	countUnreadSQL = `SELECT COUNT(*) FROM notifications
		WHERE audience = 'user' AND user_id = $1 AND NOT read`
)

var _ notification.Repository = (*NotificationRepository)(nil)

// NotificationRepository implements notification.Repository backed by
// PostgreSQL. Customer and admin inboxes share one table, separated by the
// audience column.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a NotificationRepository that uses the
// given pool.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create persists a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	_, err := r.pool.Exec(ctx, insertNotificationSQL,
		n.ID, string(n.Audience), n.UserID, string(n.Type),
		n.Title, n.Message, n.Read, n.OrderID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating notification %q: %w", n.ID, err)
	}
	return nil
}

// List returns an audience's notifications, most recent first.
func (r *NotificationRepository) List(ctx context.Context, audience notification.Audience, userID string, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if audience == notification.AudienceAdmin {
		rows, err = r.pool.Query(ctx, listAdminNotificationsSQL, limit)
	} else {
		rows, err = r.pool.Query(ctx, listUserNotificationsSQL, userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return pgx.CollectRows(rows, scanNotification)
}

// MarkRead flips one notification to read. The UPDATE is scoped by the owner,
// so a notification belonging to another user (or the other audience) is
// indistinguishable from a missing one.
func (r *NotificationRepository) MarkRead(ctx context.Context, audience notification.Audience, userID, id string) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if audience == notification.AudienceAdmin {
		tag, err = r.pool.Exec(ctx, markAdminReadSQL, id)
	} else {
		tag, err = r.pool.Exec(ctx, markUserReadSQL, id, userID)
	}
	if err != nil {
		return fmt.Errorf("marking notification %q read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Already read, or not owned; distinguish for the caller with the same
		// ownership predicate.
		var exists bool
		if audience == notification.AudienceAdmin {
			err = r.pool.QueryRow(ctx, adminNotificationExistsSQL, id).Scan(&exists)
		} else {
			err = r.pool.QueryRow(ctx, userNotificationExistsSQL, id, userID).Scan(&exists)
		}
		if err != nil {
			return fmt.Errorf("checking notification %q: %w", id, err)
		}
		if !exists {
			return notification.ErrNotFound
		}
	}
	return nil
}

// MarkAllRead flips every unread notification for the user and reports how
// many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, markAllReadSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read for user %q: %w", userID, err)
	}
	return int(tag.RowsAffected()), nil
}

// CountUnread returns the user's current unread count.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countUnreadSQL, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unread notifications for user %q: %w", userID, err)
	}
	return count, nil
}

func scanNotification(row pgx.CollectableRow) (notification.Notification, error) {
	var (
		n        notification.Notification
		audience string
		typ      string
	)
	err := row.Scan(&n.ID, &audience, &n.UserID, &typ, &n.Title, &n.Message, &n.Read, &n.OrderID, &n.CreatedAt)
	n.Audience = notification.Audience(audience)
	n.Type = notification.Type(typ)
	return n, err
}
