package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"pwashop/models"

	"go.uber.org/zap"
)

// ErrMalformedPushPayload marks a push message that is not the expected JSON.
var ErrMalformedPushPayload = errors.New("malformed push payload")

const (
	ActionView  = "view"
	ActionClose = "close"

	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/icon-72x72.png"
)

// Surface displays platform notifications.
type Surface interface {
	Show(ctx context.Context, opts models.NotificationOptions) error
}

// WindowClient is an open page.
type WindowClient interface {
	URL() string
	Focus(ctx context.Context) error
}

// Clients enumerates and opens pages.
type Clients interface {
	MatchAll(ctx context.Context) ([]WindowClient, error)
	OpenWindow(ctx context.Context, url string) error
}

// ShownNotification is a notification the user interacted with.
type ShownNotification interface {
	Data() map[string]any
	Close()
}

// Renderer turns push messages into notifications and routes clicks.
type Renderer struct {
	surface Surface
	clients Clients
	logger  *zap.Logger
}

func NewRenderer(surface Surface, clients Clients, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{surface: surface, clients: clients, logger: logger}
}

// ParsePayload decodes an inbound push message.
func ParsePayload(raw []byte) (models.PushPayload, error) {
	var p models.PushPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %w", ErrMalformedPushPayload, err)
	}
	if p.Title == "" {
		return p, fmt.Errorf("%w: missing title", ErrMalformedPushPayload)
	}
	return p, nil
}

// Options builds what gets displayed for p.
func Options(p models.PushPayload) models.NotificationOptions {
	opts := models.NotificationOptions{
		Title:   p.Title,
		Body:    p.Body,
		Icon:    p.Icon,
		Badge:   p.Badge,
		Vibrate: []int{100, 50, 100},
		Data:    p.Data,
		Actions: []models.NotificationAction{
			{Action: ActionView, Title: "View", Icon: DefaultIcon},
			{Action: ActionClose, Title: "Close", Icon: DefaultIcon},
		},
	}
	if opts.Icon == "" {
		opts.Icon = DefaultIcon
	}
	if opts.Badge == "" {
		opts.Badge = DefaultBadge
	}
	if opts.Data == nil {
		opts.Data = map[string]any{}
	}
	return opts
}

// HandlePush displays an inbound push. Empty and malformed messages are
// logged and skipped; only a display failure is returned.
func (r *Renderer) HandlePush(ctx context.Context, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	p, err := ParsePayload(raw)
	if err != nil {
		r.logger.Warn("skipping push message", zap.Error(err))
		return nil
	}
	if err := r.surface.Show(ctx, Options(p)); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	return nil
}

// HandleClick closes n and, for the view action, focuses a page already
// showing the target URL or opens a new one.
func (r *Renderer) HandleClick(ctx context.Context, action string, n ShownNotification) error {
	n.Close()
	if action != ActionView {
		return nil
	}

	target := TargetURL(n.Data())
	open, err := r.clients.MatchAll(ctx)
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}
	for _, c := range open {
		if sameTarget(c.URL(), target) {
			return c.Focus(ctx)
		}
	}
	return r.clients.OpenWindow(ctx, target)
}

// TargetURL is data.url, or the site root.
func TargetURL(data map[string]any) string {
	if u, ok := data["url"].(string); ok && u != "" {
		return u
	}
	return "/"
}

func sameTarget(clientURL, target string) bool {
	if clientURL == target {
		return true
	}
	t, err := url.Parse(target)
	if err != nil || t.IsAbs() {
		return false
	}
	c, err := url.Parse(clientURL)
	if err != nil {
		return false
	}
	return c.RequestURI() == t.RequestURI()
}
