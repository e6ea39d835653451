// Package localstore persists small client-side values, most importantly the
// product list served when both network and cache miss. Every value belongs
// to one user.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix = "local:"

	// CachedProductsKey holds the last product list the client persisted.
	CachedProductsKey = "cachedProducts"
	// CachedUserKey holds the last user profile the client persisted.
	CachedUserKey = "user"
)

var ErrNoOwner = errors.New("localstore: user id is required")

type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func itemKey(userID, key string) string {
	return keyPrefix + userID + ":" + key
}

func (s *Store) SetItem(ctx context.Context, userID, key string, value []byte) error {
	if userID == "" {
		return ErrNoOwner
	}
	if err := s.client.Set(ctx, itemKey(userID, key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// GetItem returns nil, nil when the key is absent or there is no owner.
func (s *Store) GetItem(ctx context.Context, userID, key string) ([]byte, error) {
	if userID == "" {
		return nil, nil
	}
	v, err := s.client.Get(ctx, itemKey(userID, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) RemoveItem(ctx context.Context, userID string, keys ...string) error {
	if userID == "" {
		return ErrNoOwner
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = itemKey(userID, k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("remove %v: %w", keys, err)
	}
	return nil
}

// SetProducts persists the product list as given by the user's client.
func (s *Store) SetProducts(ctx context.Context, userID string, products []json.RawMessage) error {
	if products == nil {
		products = []json.RawMessage{}
	}
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal products: %w", err)
	}
	return s.SetItem(ctx, userID, CachedProductsKey, data)
}

// Products returns the user's persisted product list. A missing or unreadable
// value, or an anonymous caller, yields an empty list.
func (s *Store) Products(ctx context.Context, userID string) ([]json.RawMessage, error) {
	data, err := s.GetItem(ctx, userID, CachedProductsKey)
	if err != nil {
		return nil, err
	}
	products := []json.RawMessage{}
	if len(data) == 0 {
		return products, nil
	}
	if err := json.Unmarshal(data, &products); err != nil {
		return []json.RawMessage{}, nil
	}
	return products, nil
}

// Clear drops everything the user's client persisted, on logout.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.RemoveItem(ctx, userID, CachedProductsKey, CachedUserKey)
}
