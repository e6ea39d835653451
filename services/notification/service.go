package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pwashop/database/repository"
	"pwashop/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	payloadIcon  = "/icons/icon-192x192.png"
	payloadBadge = "/icons/icon-72x72.png"
)

// preferenceFor maps a notification type to the opt-in it requires, if any.
func preferenceFor(kind string) string {
	switch kind {
	case models.NotificationPromotion:
		return "promotions"
	case models.NotificationNewProduct:
		return "newProducts"
	}
	return ""
}

func encodePayload(title, body string, data map[string]any, now time.Time) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(models.PushPayload{
		Title:     title,
		Body:      body,
		Icon:      payloadIcon,
		Badge:     payloadBadge,
		Data:      data,
		Timestamp: now.UnixMilli(),
	})
}

func (s *DefaultNotificationService) SaveSubscription(ctx context.Context, userID string, sub models.PushSubscription) error {
	if !sub.Valid() {
		return ErrInvalidSubscription
	}
	if err := s.users.SetPushSubscription(ctx, userID, sub); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("save subscription: %w", err)
	}
	s.logger.Info("push subscription saved", zap.String("userID", userID))
	return nil
}

func (s *DefaultNotificationService) RemoveSubscription(ctx context.Context, userID string) error {
	if err := s.users.ClearPushSubscription(ctx, userID); err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	s.logger.Info("push subscription removed", zap.String("userID", userID))
	return nil
}

// SendToUser pushes to the caller, or to req.UserID when the caller is an admin.
func (s *DefaultNotificationService) SendToUser(ctx context.Context, caller *models.User, req SendRequest) error {
	targetID := caller.ID.Hex()
	if req.UserID != "" && caller.IsAdmin() {
		targetID = req.UserID
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user %s: %w", targetID, err)
	}
	if !target.PushSubscription.Valid() {
		return ErrNotSubscribed
	}

	now := time.Now()
	payload, err := encodePayload(req.Title, req.Body, req.Data, now)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if err := s.sender.Send(ctx, *target.PushSubscription, payload); err != nil {
		s.logger.Error("push notification error", zap.String("userID", targetID), zap.Error(err))
		if IsGone(err) {
			s.clearGone(ctx, targetID)
		}
		return fmt.Errorf("send push notification: %w", err)
	}

	record := &models.Notification{
		User:    target.ID,
		Title:   req.Title,
		Message: req.Body,
		Type:    models.NotificationGeneral,
		Data:    req.Data,
		Sent:    true,
		SentAt:  &now,
	}
	if kind, ok := req.Data["type"].(string); ok && kind != "" {
		record.Type = kind
	}
	if err := s.notifications.Create(ctx, record); err != nil {
		// The push went out; only log.
		s.logger.Error("failed to store notification record", zap.String("userID", targetID), zap.Error(err))
	}
	return nil
}

// Broadcast pushes to every subscriber who opted into req.Type. Delivery
// runs concurrently; a gone subscription is cleared for that user only.
func (s *DefaultNotificationService) Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	kind := req.Type
	if kind == "" {
		kind = models.NotificationGeneral
	}

	users, err := s.users.FindSubscribed(ctx, preferenceFor(kind))
	if err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}

	now := time.Now()
	payload, err := encodePayload(req.Title, req.Body, req.Data, now)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var (
		mu      sync.Mutex
		records = make([]models.Notification, 0, len(users))
		sent    int
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, u := range users {
		if !u.PushSubscription.Valid() {
			continue
		}
		g.Go(func() error {
			record := models.Notification{
				User:    u.ID,
				Title:   req.Title,
				Message: req.Body,
				Type:    kind,
				Data:    req.Data,
			}

			err := s.sender.Send(gctx, *u.PushSubscription, payload)
			if err != nil {
				s.logger.Warn("failed to send to user", zap.String("userID", u.ID.Hex()), zap.Error(err))
				if IsGone(err) {
					s.clearGone(gctx, u.ID.Hex())
				}
			} else {
				sentAt := now
				record.Sent = true
				record.SentAt = &sentAt
			}

			mu.Lock()
			records = append(records, record)
			if err != nil {
				failed++
			} else {
				sent++
			}
			mu.Unlock()
			// One recipient failing never stops the rest.
			return nil
		})
	}
	_ = g.Wait()

	if err := s.notifications.InsertMany(ctx, records); err != nil {
		s.logger.Error("failed to store broadcast records", zap.Int("records", len(records)), zap.Error(err))
	}

	s.logger.Info("broadcast completed",
		zap.String("type", kind),
		zap.Int("recipients", len(records)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	return &BroadcastResult{
		Message:      fmt.Sprintf("Broadcast completed. Sent: %d, Failed: %d", sent, failed),
		TotalUsers:   len(records),
		SuccessCount: sent,
		FailCount:    failed,
	}, nil
}

func (s *DefaultNotificationService) clearGone(ctx context.Context, userID string) {
	if err := s.users.ClearPushSubscription(ctx, userID); err != nil {
		s.logger.Error("failed to clear gone subscription", zap.String("userID", userID), zap.Error(err))
		return
	}
	s.logger.Info("cleared gone push subscription", zap.String("userID", userID))
}

func (s *DefaultNotificationService) List(ctx context.Context, userID string, opts repository.NotificationListOptions) (*ListResult, error) {
	opts = opts.Normalize()
	items, total, err := s.notifications.List(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	return &ListResult{
		Notifications: items,
		Pagination: Pagination{
			Current: opts.Page,
			Pages:   (total + opts.Limit - 1) / opts.Limit,
			Total:   total,
		},
		UnreadCount: unread,
	}, nil
}

func (s *DefaultNotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.notifications.MarkRead(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, ErrNotificationMissing
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *DefaultNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}
