package models

import (
	"net/http"
	"time"
)

// SyncAction is a mutation captured while offline, replayed once the origin is reachable.
type SyncAction struct {
	IdempotencyKey string      `json:"idempotencyKey"`
	UserID         string      `json:"userId"`
	Tag            string      `json:"tag"`
	Method         string      `json:"method"`
	Path           string      `json:"path"`
	Header         http.Header `json:"header,omitempty"`
	Body           []byte      `json:"body,omitempty"`
	QueuedAt       time.Time   `json:"queuedAt"`
}

// SyncTaskPayload is the asynq payload asking the worker to flush one
// user's tag.
type SyncTaskPayload struct {
	UserID string `json:"userId"`
	Tag    string `json:"tag"`
}
