package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pwashop/models"
)

// Sender delivers one encoded payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// DeliveryError is a push service refusing a message.
type DeliveryError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push delivery to %s failed with status %d", shortEndpoint(e.Endpoint), e.StatusCode)
	}
	return fmt.Sprintf("push delivery to %s failed with status %d: %s", shortEndpoint(e.Endpoint), e.StatusCode, e.Body)
}

// IsGone reports whether err says the subscription no longer exists.
func IsGone(err error) bool {
	var de *DeliveryError
	if !errors.As(err, &de) {
		return false
	}
	return de.StatusCode == http.StatusGone || de.StatusCode == http.StatusNotFound
}

func shortEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return endpoint
}
