package userRepo

import (
	"context"
	"errors"

	"pwashop/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the user-document access the edge needs.
type UserRepository interface {
	// GetByID retrieves a user by its hex ObjectID.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// SetPushSubscription mirrors a client subscription onto the user.
	SetPushSubscription(ctx context.Context, id string, sub models.PushSubscription) error
	// ClearPushSubscription drops the mirrored subscription.
	ClearPushSubscription(ctx context.Context, id string) error
	// FindSubscribed lists users holding a subscription. A non-empty
	// preference restricts the result to users who opted into it.
	FindSubscribed(ctx context.Context, preference string) ([]models.User, error)
}
