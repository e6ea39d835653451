// Package interceptor decides, per request class, whether to answer from the
// network or from a cache partition, and what to serve when both fail.
package interceptor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"pwashop/models"
)

// ErrNetworkFailure means the network attempt failed and no fallback applied.
var ErrNetworkFailure = errors.New("network error and no cache available")

// Fetcher performs the live network round-trip.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*models.ResponseSnapshot, error)
}

// ProductSource supplies the product list a user's client persisted.
type ProductSource interface {
	Products(ctx context.Context, userID string) ([]json.RawMessage, error)
}

// IdentifyFunc resolves the user a credentialed request acts for.
type IdentifyFunc func(req *http.Request) (string, error)

// Source tells where a served response came from.
type Source string

const (
	SourceNetwork         Source = "network"
	SourceCache           Source = "cache"
	SourceOfflineFallback Source = "offline-fallback"
)

// Response is what the interceptor hands back for one request.
type Response struct {
	*models.ResponseSnapshot
	Source Source
}

// Options tunes request classification.
type Options struct {
	APIPrefix    string
	ProductsPath string
	OfflinePage  string
	// Identify defaults to reading the bearer token.
	Identify IdentifyFunc
}

func (o Options) withDefaults() Options {
	if o.APIPrefix == "" {
		o.APIPrefix = "/api/"
	}
	if o.ProductsPath == "" {
		o.ProductsPath = "/api/products"
	}
	if o.OfflinePage == "" {
		o.OfflinePage = "/offline.html"
	}
	if o.Identify == nil {
		o.Identify = BearerUserID
	}
	return o
}
