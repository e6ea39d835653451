package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pwashop/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.URL+"/api",
		WithRetry(3, time.Millisecond),
		WithTokenSource(func(context.Context) (string, error) { return "tok", nil }),
	)
}

func TestAPIClientVapidPublicKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/vapid-public-key", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]string{"publicKey": testKey})
	})

	key, err := c.VapidPublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}

func TestAPIClientSubscribeBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/notifications/subscribe", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body struct {
			Subscription models.PushSubscription `json:"subscription"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://push.example/ep/1", body.Subscription.Endpoint)
		assert.Equal(t, "auth", body.Subscription.Keys.Auth)
		w.WriteHeader(http.StatusOK)
	})

	err := c.Subscribe(context.Background(), models.PushSubscription{
		Endpoint: "https://push.example/ep/1",
		Keys:     models.PushKeys{P256dh: "p256", Auth: "auth"},
	})
	require.NoError(t, err)
}

func TestAPIClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Unsubscribe(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestAPIClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"User has no push subscription"}`))
	})

	err := c.Send(context.Background(), SendRequest{Title: "t", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User has no push subscription")
	assert.Equal(t, int32(1), calls.Load())
}
