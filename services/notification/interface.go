package notification

import (
	"context"
	"errors"
	"fmt"

	"pwashop/database/repository"
	"pwashop/models"

	"go.uber.org/zap"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrNotSubscribed       = errors.New("user not subscribed to push notifications")
	ErrInvalidSubscription = errors.New("invalid push subscription")
	ErrNotificationMissing = errors.New("notification not found")
)

// NotificationService owns the server-side subscription mirror and push delivery.
type NotificationService interface {
	SaveSubscription(ctx context.Context, userID string, sub models.PushSubscription) error
	RemoveSubscription(ctx context.Context, userID string) error

	SendToUser(ctx context.Context, caller *models.User, req SendRequest) error
	Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error)

	List(ctx context.Context, userID string, opts repository.NotificationListOptions) (*ListResult, error)
	MarkRead(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	VapidPublicKey() string
}

type SendRequest struct {
	UserID string         `json:"userId,omitempty"`
	Title  string         `json:"title" binding:"required"`
	Body   string         `json:"body" binding:"required"`
	Data   map[string]any `json:"data,omitempty"`
}

type BroadcastRequest struct {
	Title string         `json:"title" binding:"required"`
	Body  string         `json:"body" binding:"required"`
	Data  map[string]any `json:"data,omitempty"`
	Type  string         `json:"type,omitempty"`
}

type BroadcastResult struct {
	Message      string `json:"message"`
	TotalUsers   int    `json:"totalUsers"`
	SuccessCount int    `json:"successCount"`
	FailCount    int    `json:"failCount"`
}

type Pagination struct {
	Current int64 `json:"current"`
	Pages   int64 `json:"pages"`
	Total   int64 `json:"total"`
}

type ListResult struct {
	Notifications []models.Notification `json:"notifications"`
	Pagination    Pagination            `json:"pagination"`
	UnreadCount   int64                 `json:"unreadCount"`
}

// DefaultNotificationService is the production implementation.
type DefaultNotificationService struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	sender        Sender
	logger        *zap.Logger

	vapidPublicKey string
	concurrency    int
}

func NewDefaultNotificationService(
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	sender Sender,
	logger *zap.Logger,
	vapidPublicKey string,
	concurrency int,
) (*DefaultNotificationService, error) {
	if users == nil || notifications == nil || sender == nil {
		return nil, fmt.Errorf("notification service initialization error: repository or sender is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 10
	}
	return &DefaultNotificationService{
		users:          users,
		notifications:  notifications,
		sender:         sender,
		logger:         logger,
		vapidPublicKey: vapidPublicKey,
		concurrency:    concurrency,
	}, nil
}

func (s *DefaultNotificationService) VapidPublicKey() string {
	return s.vapidPublicKey
}
