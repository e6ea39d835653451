package notificationRepo

import (
	"context"
	"errors"

	"pwashop/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// ListOptions pages through a user's notifications, newest first.
type ListOptions struct {
	Page       int64
	Limit      int64
	UnreadOnly bool
}

// Normalize clamps paging to sane values.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	return o
}

func (o ListOptions) Skip() int64 {
	return (o.Page - 1) * o.Limit
}

// NotificationRepository stores delivery records.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	InsertMany(ctx context.Context, ns []models.Notification) error
	// List returns one page and the total matching the filter.
	List(ctx context.Context, userID string, opts ListOptions) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead returns the updated record.
	MarkRead(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
