package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"pwashop/models"

	"firebase.google.com/go/v4/messaging"
)

const fcmEndpointPrefix = "https://fcm.googleapis.com/fcm/send/"

// FCMClient is the part of the firebase messaging client FCMSender uses.
type FCMClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers to FCM-hosted web push endpoints through the Firebase
// Admin SDK.
type FCMSender struct {
	client FCMClient
}

func NewFCMSender(client FCMClient) *FCMSender {
	return &FCMSender{client: client}
}

// IsFCMEndpoint reports whether endpoint is hosted by FCM.
func IsFCMEndpoint(endpoint string) bool {
	return strings.HasPrefix(endpoint, fcmEndpointPrefix) && len(endpoint) > len(fcmEndpointPrefix)
}

func fcmToken(endpoint string) string {
	return strings.TrimPrefix(endpoint, fcmEndpointPrefix)
}

func (s *FCMSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if !IsFCMEndpoint(sub.Endpoint) {
		return fmt.Errorf("endpoint %s is not an FCM endpoint", shortEndpoint(sub.Endpoint))
	}

	var p models.PushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode push payload: %w", err)
	}

	msg := &messaging.Message{
		Token: fcmToken(sub.Endpoint),
		Data:  map[string]string{"payload": string(payload)},
		Webpush: &messaging.WebpushConfig{
			Headers: map[string]string{"TTL": "86400"},
			Notification: &messaging.WebpushNotification{
				Title: p.Title,
				Body:  p.Body,
				Icon:  p.Icon,
				Badge: p.Badge,
				Data:  p.Data,
			},
		},
	}
	if url, ok := p.Data["url"].(string); ok && url != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: url}
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		switch {
		case messaging.IsUnregistered(err):
			return &DeliveryError{StatusCode: http.StatusGone, Endpoint: sub.Endpoint, Body: err.Error()}
		case messaging.IsInvalidArgument(err):
			return &DeliveryError{StatusCode: http.StatusBadRequest, Endpoint: sub.Endpoint, Body: err.Error()}
		}
		return fmt.Errorf("send FCM message: %w", err)
	}
	return nil
}

// RoutingSender sends FCM-hosted endpoints through fcm and everything else
// through fallback.
type RoutingSender struct {
	fcm      Sender
	fallback Sender
}

func NewRoutingSender(fcm, fallback Sender) *RoutingSender {
	return &RoutingSender{fcm: fcm, fallback: fallback}
}

func (s *RoutingSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if s.fcm != nil && IsFCMEndpoint(sub.Endpoint) {
		return s.fcm.Send(ctx, sub, payload)
	}
	return s.fallback.Send(ctx, sub, payload)
}
