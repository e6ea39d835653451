package interceptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"pwashop/models"
	"pwashop/services/cachestore"

	"go.uber.org/zap"
)

// Interceptor routes every request through the network-first (API) or
// cache-first (static/navigation) strategy.
type Interceptor struct {
	store    cachestore.Store
	network  Fetcher
	products ProductSource
	logger   *zap.Logger
	opts     Options

	active atomic.Pointer[cachestore.Version]
	writer *cacheWriter
}

func New(store cachestore.Store, network Fetcher, products ProductSource, logger *zap.Logger, opts Options) *Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interceptor{
		store:    store,
		network:  network,
		products: products,
		logger:   logger,
		opts:     opts.withDefaults(),
		writer:   newCacheWriter(store, logger),
	}
}

// Claim makes v the version whose partitions receive new entries.
func (i *Interceptor) Claim(v cachestore.Version) {
	i.active.Store(&v)
	i.logger.Info("interceptor claimed cache version",
		zap.String("version", v.Tag),
		zap.String("static", v.Static),
		zap.String("api", v.API),
	)
}

// Active returns the claimed version, if any.
func (i *Interceptor) Active() (cachestore.Version, bool) {
	v := i.active.Load()
	if v == nil {
		return cachestore.Version{}, false
	}
	return *v, true
}

// Wait blocks until pending background cache writes are done.
func (i *Interceptor) Wait() {
	i.writer.wait()
}

// Close flushes pending writes and stops accepting new ones.
func (i *Interceptor) Close() {
	i.writer.close()
}

// Fetch answers one intercepted request.
func (i *Interceptor) Fetch(ctx context.Context, req *http.Request) (*Response, error) {
	v := i.active.Load()
	if v == nil {
		// Nothing claimed yet: plain pass-through.
		snap, err := i.network.Fetch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
		}
		return &Response{ResponseSnapshot: snap, Source: SourceNetwork}, nil
	}

	if strings.HasPrefix(req.URL.Path, i.opts.APIPrefix) {
		return i.networkFirst(ctx, req, v.API)
	}
	return i.cacheFirst(ctx, req, v.Static)
}

func (i *Interceptor) networkFirst(ctx context.Context, req *http.Request, partition string) (*Response, error) {
	userID, cacheable := i.identify(req)
	key := cacheKey(userID, req)

	snap, err := i.network.Fetch(ctx, req)
	if err == nil {
		if cacheable && req.Method == http.MethodGet && snap.Status == http.StatusOK && storable(snap, userID != "") {
			i.writer.submit(partition, key, snap.Clone())
		}
		return &Response{ResponseSnapshot: snap, Source: SourceNetwork}, nil
	}

	i.logger.Debug("api request failed at network", zap.String("key", key), zap.Error(err))
	if req.Method != http.MethodGet {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}

	if cacheable {
		cached, cerr := i.store.Match(ctx, key)
		if cerr == nil {
			return &Response{ResponseSnapshot: cached, Source: SourceCache}, nil
		}
		if !errors.Is(cerr, cachestore.ErrCacheMiss) {
			i.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(cerr))
		}
	}

	if req.URL.Path == i.opts.ProductsPath {
		return i.offlineProducts(ctx, userID, key), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
}

// cacheFirst serves shared entries only. A credentialed request refreshes the
// shared entry only when the origin marks the response public.
func (i *Interceptor) cacheFirst(ctx context.Context, req *http.Request, partition string) (*Response, error) {
	key := models.RequestKey(req.Method, req.URL.RequestURI())

	if req.Method == http.MethodGet {
		cached, err := i.store.Match(ctx, key)
		if err == nil {
			return &Response{ResponseSnapshot: cached, Source: SourceCache}, nil
		}
		if !errors.Is(err, cachestore.ErrCacheMiss) {
			i.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	snap, err := i.network.Fetch(ctx, req)
	if err != nil {
		i.logger.Debug("static request failed at network", zap.String("key", key), zap.Error(err))
		if isNavigation(req) {
			offline, oerr := i.store.Match(ctx, models.RequestKey(http.MethodGet, i.opts.OfflinePage))
			if oerr == nil {
				return &Response{ResponseSnapshot: offline, Source: SourceOfflineFallback}, nil
			}
			i.logger.Warn("offline page not cached", zap.String("page", i.opts.OfflinePage), zap.Error(oerr))
		}
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}

	if req.Method == http.MethodGet && snap.Status == http.StatusOK && snap.Type == models.ResponseBasic &&
		storable(snap, false) && (!hasCredentials(req) || isPublic(snap)) {
		i.writer.submit(partition, key, snap.Clone())
	}
	return &Response{ResponseSnapshot: snap, Source: SourceNetwork}, nil
}

type offlineProductList struct {
	Products []json.RawMessage `json:"products"`
	Offline  bool              `json:"offline"`
}

// offlineProducts wraps the caller's own persisted list. Anonymous callers get
// an empty one.
func (i *Interceptor) offlineProducts(ctx context.Context, userID, key string) *Response {
	products, err := i.products.Products(ctx, userID)
	if err != nil {
		i.logger.Warn("reading persisted products failed", zap.Error(err))
	}
	if products == nil {
		products = []json.RawMessage{}
	}

	// Marshalling RawMessages that came out of a JSON decode cannot fail.
	body, _ := json.Marshal(offlineProductList{Products: products, Offline: true})
	return &Response{
		ResponseSnapshot: &models.ResponseSnapshot{
			RequestKey: key,
			Status:     http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       body,
			Type:       models.ResponseDefault,
			StoredAt:   time.Now(),
		},
		Source: SourceOfflineFallback,
	}
}

// isNavigation reports whether req loads a full page.
func isNavigation(req *http.Request) bool {
	if dest := req.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest == "document"
	}
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return req.Method == http.MethodGet && strings.Contains(req.Header.Get("Accept"), "text/html")
}
