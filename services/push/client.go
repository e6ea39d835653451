package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pwashop/models"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
)

// StatusError is a non-2xx answer from the notification API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notification api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("notification api: status %d: %s", e.StatusCode, e.Message)
}

// TokenSource returns the bearer token for the signed-in user.
type TokenSource func(ctx context.Context) (string, error)

// APIClient talks to the notification API over HTTP.
type APIClient struct {
	baseURL  string
	http     *http.Client
	token    TokenSource
	logger   *zap.Logger
	attempts uint
	delay    time.Duration
}

type ClientOption func(*APIClient)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *APIClient) { a.http = c }
}

func WithTokenSource(ts TokenSource) ClientOption {
	return func(a *APIClient) { a.token = ts }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(a *APIClient) { a.logger = l }
}

func WithRetry(attempts uint, delay time.Duration) ClientOption {
	return func(a *APIClient) {
		a.attempts = attempts
		a.delay = delay
	}
}

// NewAPIClient builds a client rooted at baseURL, e.g. "https://shop.example/api".
func NewAPIClient(baseURL string, opts ...ClientOption) *APIClient {
	a := &APIClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   zap.NewNop(),
		attempts: 3,
		delay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *APIClient) VapidPublicKey(ctx context.Context) (string, error) {
	var out struct {
		PublicKey string `json:"publicKey"`
	}
	if err := a.do(ctx, http.MethodGet, "/notifications/vapid-public-key", nil, &out); err != nil {
		return "", err
	}
	if out.PublicKey == "" {
		return "", fmt.Errorf("notification api: empty public key")
	}
	return out.PublicKey, nil
}

func (a *APIClient) Subscribe(ctx context.Context, sub models.PushSubscription) error {
	body := struct {
		Subscription models.PushSubscription `json:"subscription"`
	}{Subscription: sub}
	return a.do(ctx, http.MethodPost, "/notifications/subscribe", body, nil)
}

func (a *APIClient) Unsubscribe(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, "/notifications/subscribe", nil, nil)
}

// SendRequest asks the server to push a notification to the caller or, for
// admins, to another user.
type SendRequest struct {
	UserID string         `json:"userId,omitempty"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data,omitempty"`
}

func (a *APIClient) Send(ctx context.Context, req SendRequest) error {
	return a.do(ctx, http.MethodPost, "/notifications/send", req, nil)
}

// do sends one JSON request. Transport errors and 5xx answers are retried;
// any other status is returned as a *StatusError.
func (a *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	return retry.Do(
		func() error {
			var body io.Reader
			if payload != nil {
				body = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			if a.token != nil {
				tok, err := a.token(ctx)
				if err != nil {
					return retry.Unrecoverable(fmt.Errorf("token: %w", err))
				}
				if tok != "" {
					req.Header.Set("Authorization", "Bearer "+tok)
				}
			}

			resp, err := a.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				serr := &StatusError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
				if resp.StatusCode >= 500 {
					return serr
				}
				return retry.Unrecoverable(serr)
			}
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode %s %s: %w", method, path, err))
			}
			return nil
		},
		retry.Attempts(a.attempts),
		retry.Delay(a.delay),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Debug("retrying notification api call", zap.String("path", path), zap.Uint("attempt", n), zap.Error(err))
		}),
	)
}

func readMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}
