package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"pwashop/models"
	"pwashop/services/backgroundsync"
	"pwashop/services/lifecycle"
	"pwashop/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLifecycle struct {
	runErr error
	runs   int
}

func (f *fakeLifecycle) Run(context.Context) error {
	f.runs++
	return f.runErr
}

func (f *fakeLifecycle) Status(context.Context) lifecycle.Status {
	return lifecycle.Status{Version: "v2", State: lifecycle.StateActivated}
}

type fakeSync struct {
	supported bool
	queued    []models.SyncAction
	seen      map[string]bool
}

func (f *fakeSync) Supported() bool                                { return f.supported }
func (f *fakeSync) Register(context.Context, string, string) error { return nil }

func (f *fakeSync) Queue(_ context.Context, userID, tag string, a models.SyncAction) (string, bool, error) {
	if a.Path == "" || a.Path[0] != '/' {
		return "", false, backgroundsync.ErrInvalidAction
	}
	if a.IdempotencyKey == "" {
		a.IdempotencyKey = "generated"
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	seenKey := userID + "/" + a.IdempotencyKey
	if f.seen[seenKey] {
		return a.IdempotencyKey, false, nil
	}
	f.seen[seenKey] = true
	a.UserID = userID
	a.Tag = tag
	f.queued = append(f.queued, a)
	return a.IdempotencyKey, true, nil
}

func (f *fakeSync) Pending(_ context.Context, userID, _ string) (int64, error) {
	var n int64
	for _, a := range f.queued {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeOffline struct {
	products map[string][]json.RawMessage
	cleared  []string
}

func (f *fakeOffline) SetProducts(_ context.Context, userID string, p []json.RawMessage) error {
	if f.products == nil {
		f.products = map[string][]json.RawMessage{}
	}
	f.products[userID] = p
	return nil
}

func (f *fakeOffline) Clear(_ context.Context, userID string) error {
	delete(f.products, userID)
	f.cleared = append(f.cleared, userID)
	return nil
}

// swRouter serves the /sw endpoints as u. A nil u leaves the caller unset.
func swRouter(h *ServiceWorkerHandler, u ...*models.User) *gin.Engine {
	r := gin.New()
	r.GET("/sw/status", h.StatusHandler)
	r.POST("/sw/update", h.UpdateHandler)
	auth := r.Group("")
	if len(u) > 0 && u[0] != nil {
		auth.Use(asUser(u[0]))
	}
	auth.POST("/sw/sync/:tag", h.RegisterSyncHandler)
	auth.POST("/sw/sync/:tag/actions", h.QueueActionHandler)
	auth.PUT("/sw/offline/products", h.SetProductsHandler)
	auth.DELETE("/sw/offline", h.ClearOfflineHandler)
	return r
}

func TestStatusReportsLifecycle(t *testing.T) {
	w := perform(swRouter(NewServiceWorkerHandler(&fakeLifecycle{}, &fakeSync{}, &fakeOffline{})), http.MethodGet, "/sw/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"activated"`)
}

func TestUpdateRunsLifecycle(t *testing.T) {
	lc := &fakeLifecycle{}
	r := swRouter(NewServiceWorkerHandler(lc, &fakeSync{}, &fakeOffline{}))

	w := perform(r, http.MethodPost, "/sw/update", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, lc.runs)

	lc.runErr = errors.New("precache /offline.html: status 404")
	w = perform(r, http.MethodPost, "/sw/update", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRegisterSyncWithoutQueue(t *testing.T) {
	w := perform(swRouter(NewServiceWorkerHandler(&fakeLifecycle{}, &fakeSync{}, &fakeOffline{}), customer()), http.MethodPost, "/sw/sync/sync-cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tag":"sync-cart","registered":false}`, w.Body.String())
}

func TestQueueActionCollapsesDuplicateKeys(t *testing.T) {
	sync := &fakeSync{supported: true}
	r := swRouter(NewServiceWorkerHandler(&fakeLifecycle{}, sync, &fakeOffline{}), customer())

	send := func() int {
		req := gin.H{"method": "POST", "path": "/api/orders", "body": gin.H{"item": 1}}
		w := perform(withHeader(r, backgroundsync.IdempotencyHeader, "order-1"), http.MethodPost, "/sw/sync/sync-orders/actions", req)
		return w.Code
	}
	assert.Equal(t, http.StatusAccepted, send())
	assert.Equal(t, http.StatusOK, send())
	require.Len(t, sync.queued, 1)
	assert.Equal(t, "sync-orders", sync.queued[0].Tag)
	assert.JSONEq(t, `{"item":1}`, string(sync.queued[0].Body))
}

func TestQueueActionRejectsInvalid(t *testing.T) {
	r := swRouter(NewServiceWorkerHandler(&fakeLifecycle{}, &fakeSync{supported: true}, &fakeOffline{}), customer())
	w := perform(r, http.MethodPost, "/sw/sync/sync-orders/actions", gin.H{"method": "POST", "path": "orders"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOfflineProductsRoundTrip(t *testing.T) {
	off := &fakeOffline{}
	u := customer()
	r := swRouter(NewServiceWorkerHandler(&fakeLifecycle{}, &fakeSync{}, off), u)

	w := perform(r, http.MethodPut, "/sw/offline/products", []gin.H{{"id": 1}, {"id": 2}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, off.products[u.ID.Hex()], 2)

	w = perform(r, http.MethodDelete, "/sw/offline", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{u.ID.Hex()}, off.cleared)
}

func TestServiceWorkerDataRequiresCaller(t *testing.T) {
	sync := &fakeSync{supported: true}
	off := &fakeOffline{}
	r := swRouter(NewServiceWorkerHandler(&fakeLifecycle{}, sync, off))

	cases := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/sw/sync/sync-cart", nil},
		{http.MethodPost, "/sw/sync/sync-cart/actions", gin.H{"method": "POST", "path": "/api/cart"}},
		{http.MethodPut, "/sw/offline/products", []gin.H{{"id": 1}}},
		{http.MethodDelete, "/sw/offline", nil},
	}
	for _, tc := range cases {
		w := perform(r, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
	assert.Empty(t, sync.queued)
	assert.Empty(t, off.products)
	assert.Empty(t, off.cleared)
}

func TestOfflineDataIsKeptPerCaller(t *testing.T) {
	off := &fakeOffline{}
	sync := &fakeSync{supported: true}
	h := NewServiceWorkerHandler(&fakeLifecycle{}, sync, off)
	ada, bo := customer(), customer()

	w := perform(swRouter(h, ada), http.MethodPut, "/sw/offline/products", []gin.H{{"id": "ada"}})
	require.Equal(t, http.StatusOK, w.Code)
	w = perform(swRouter(h, bo), http.MethodPut, "/sw/offline/products", []gin.H{{"id": "bo"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(swRouter(h, bo), http.MethodDelete, "/sw/offline", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, off.products[ada.ID.Hex()], 1)
	assert.JSONEq(t, `{"id":"ada"}`, string(off.products[ada.ID.Hex()][0]))
	assert.NotContains(t, off.products, bo.ID.Hex())

	order := gin.H{"method": "POST", "path": "/api/orders"}
	for _, u := range []*models.User{ada, bo} {
		w = perform(withHeader(swRouter(h, u), backgroundsync.IdempotencyHeader, "order-1"), http.MethodPost, "/sw/sync/sync-orders/actions", order)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), `"pending":1`)
	}
	require.Len(t, sync.queued, 2)
	assert.Equal(t, ada.ID.Hex(), sync.queued[0].UserID)
	assert.Equal(t, bo.ID.Hex(), sync.queued[1].UserID)
}

func TestQueuedActionCarriesCallersAuthorization(t *testing.T) {
	sync := &fakeSync{supported: true}
	r := withHeader(swRouter(NewServiceWorkerHandler(&fakeLifecycle{}, sync, &fakeOffline{}), customer()), "Authorization", "Bearer own-token")

	req := gin.H{
		"method": "POST",
		"path":   "/api/orders",
		"header": gin.H{"Authorization": []string{"Bearer someone-else"}, "Accept": []string{"application/json"}},
	}
	w := perform(r, http.MethodPost, "/sw/sync/sync-orders/actions", req)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sync.queued, 1)
	assert.Equal(t, "Bearer own-token", sync.queued[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", sync.queued[0].Header.Get("Accept"))
}

func TestHealthBeforeFirstCheck(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthHandler)
	w := perform(r, http.MethodGet, "/health", nil)
	require.True(t, utils.GetHealthStatus().CheckedAt.IsZero())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// withHeader sets a header on every request r serves.
func withHeader(r http.Handler, key, value string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		req.Header.Set(key, value)
		r.ServeHTTP(w, req)
	})
}
