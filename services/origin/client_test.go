package origin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pwashop/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchForwardsRequestAndCapturesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "page=2", r.URL.RawQuery)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Proxy-Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"products":[]}`)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/products?page=2", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("Proxy-Authorization", "secret")

	snap, err := client.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, snap.Status)
	assert.Equal(t, `{"products":[]}`, string(snap.Body))
	assert.Equal(t, models.ResponseBasic, snap.Type)
	assert.Equal(t, "GET /api/products?page=2", snap.RequestKey)
	assert.Equal(t, "application/json", snap.Header.Get("Content-Type"))
}

func TestFetchForwardsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"items":[1]}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[1]}`))
	snap, err := client.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, snap.Status)
}

func TestFetchCrossOriginRedirectIsNotBasic(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "elsewhere")
	}))
	defer other.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other.URL+"/logo.png", http.StatusFound)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	snap, err := client.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/logo.png", nil))
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCORS, snap.Type)
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url, nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("/just/a/path", nil)
	assert.Error(t, err)
}
