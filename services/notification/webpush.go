package notification

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pwashop/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushSender signs requests with the VAPID key pair and posts them to the
// subscription endpoint.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
}

func NewWebPushSender(publicKey, privateKey, subject string) *WebPushSender {
	return &WebPushSender{
		publicKey:  publicKey,
		privateKey: privateKey,
		// webpush-go adds the mailto: scheme itself.
		subscriber: strings.TrimPrefix(subject, "mailto:"),
		ttl:        60 * 60 * 24,
	}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Endpoint:   sub.Endpoint,
		Body:       strings.TrimSpace(string(body)),
	}
}
