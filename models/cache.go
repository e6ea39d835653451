package models

import (
	"net/http"
	"time"
)

// ResponseType mirrors the fetch response types that matter for caching.
type ResponseType string

const (
	// ResponseBasic is a same-origin response.
	ResponseBasic ResponseType = "basic"
	// ResponseCORS is a response that ended on another origin.
	ResponseCORS ResponseType = "cors"
	// ResponseDefault is a response synthesized locally.
	ResponseDefault ResponseType = "default"
)

// ResponseSnapshot is an immutable copy of a response tied to the request that produced it.
type ResponseSnapshot struct {
	RequestKey string       `json:"requestKey"`
	Status     int          `json:"status"`
	Header     http.Header  `json:"header"`
	Body       []byte       `json:"body"`
	Type       ResponseType `json:"type"`
	StoredAt   time.Time    `json:"storedAt"`
}

// RequestKey identifies a request by method and URI.
func RequestKey(method, uri string) string {
	return method + " " + uri
}

// ScopedRequestKey confines a request key to one owner scope.
func ScopedRequestKey(scope, key string) string {
	return "@" + scope + " " + key
}

// Clone returns a deep copy so callers never share header maps or body bytes.
func (s *ResponseSnapshot) Clone() *ResponseSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Header = s.Header.Clone()
	if s.Body != nil {
		out.Body = append([]byte(nil), s.Body...)
	}
	return &out
}
