// Package origin forwards requests to the shop backend and captures the
// responses as snapshots.
package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pwashop/models"
)

// Hop-by-hop headers are connection scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client talks to the origin backend.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for baseURL. A nil httpClient gets a 15s timeout default.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: base, http: httpClient}, nil
}

// URL resolves a request URI against the origin.
func (c *Client) URL(requestURI string) string {
	ref, err := url.Parse(requestURI)
	if err != nil {
		return strings.TrimRight(c.base.String(), "/") + requestURI
	}
	return c.base.ResolveReference(ref).String()
}

// Fetch sends req to the origin and reads the full response. A returned error
// means the network round-trip failed; HTTP error statuses are not errors.
func (c *Client) Fetch(ctx context.Context, req *http.Request) (*models.ResponseSnapshot, error) {
	out, err := http.NewRequestWithContext(ctx, req.Method, c.URL(req.URL.RequestURI()), req.Body)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}
	out.ContentLength = req.ContentLength
	out.Header = req.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	stripHopHeaders(out.Header)

	resp, err := c.http.Do(out)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", req.Method, req.URL.RequestURI(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.Method, req.URL.RequestURI(), err)
	}

	header := resp.Header.Clone()
	stripHopHeaders(header)

	return &models.ResponseSnapshot{
		RequestKey: models.RequestKey(req.Method, req.URL.RequestURI()),
		Status:     resp.StatusCode,
		Header:     header,
		Body:       body,
		Type:       c.responseType(resp),
	}, nil
}

func (c *Client) responseType(resp *http.Response) models.ResponseType {
	if resp.Request != nil && resp.Request.URL != nil && resp.Request.URL.Host != c.base.Host {
		return models.ResponseCORS
	}
	return models.ResponseBasic
}

func stripHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}
