// Package cachestore keeps named, versioned partitions of response snapshots
// keyed by request identity. Partitions outlive the process until deleted.
package cachestore

import (
	"context"
	"errors"

	"pwashop/models"
)

// ErrCacheMiss reports that no partition holds the requested key.
var ErrCacheMiss = errors.New("cachestore: cache miss")

// Store is the cache store manager.
type Store interface {
	// Open returns a handle on the partition, creating it if needed.
	Open(ctx context.Context, name string) (Partition, error)
	Put(ctx context.Context, name, key string, snap *models.ResponseSnapshot) error
	// Match searches every partition in creation order.
	Match(ctx context.Context, key string) (*models.ResponseSnapshot, error)
	MatchIn(ctx context.Context, name, key string) (*models.ResponseSnapshot, error)
	Keys(ctx context.Context) ([]string, error)
	Entries(ctx context.Context, name string) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)

	ActiveVersion(ctx context.Context) (string, error)
	SetActiveVersion(ctx context.Context, version string) error
}

// Partition is a handle scoped to one named partition.
type Partition struct {
	name  string
	store Store
}

func (p Partition) Name() string { return p.name }

func (p Partition) Put(ctx context.Context, key string, snap *models.ResponseSnapshot) error {
	return p.store.Put(ctx, p.name, key, snap)
}

func (p Partition) Match(ctx context.Context, key string) (*models.ResponseSnapshot, error) {
	return p.store.MatchIn(ctx, p.name, key)
}

func (p Partition) Entries(ctx context.Context) ([]string, error) {
	return p.store.Entries(ctx, p.name)
}
