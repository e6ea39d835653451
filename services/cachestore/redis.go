package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"pwashop/models"

	"github.com/go-redis/redis/v8"
)

const (
	namesKey         = "cache:names"
	partitionPrefix  = "cache:partition:"
	activeVersionKey = "cache:active-version"
)

func partitionKey(name string) string {
	return partitionPrefix + name
}

// RedisStore implements Store on Redis. Partition names live in a sorted set
// scored by creation time; each partition is a hash of request key to snapshot.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Open(ctx context.Context, name string) (Partition, error) {
	if err := s.register(ctx, s.client, name); err != nil {
		return Partition{}, fmt.Errorf("open partition %s: %w", name, err)
	}
	return Partition{name: name, store: s}, nil
}

func (s *RedisStore) register(ctx context.Context, c redis.Cmdable, name string) error {
	return c.ZAddNX(ctx, namesKey, &redis.Z{
		Score:  float64(s.now().UnixNano()),
		Member: name,
	}).Err()
}

// Put stores a copy of snap under key, without any cookies it set. An
// existing entry is replaced wholesale.
func (s *RedisStore) Put(ctx context.Context, name, key string, snap *models.ResponseSnapshot) error {
	stored := snap.Clone()
	stored.RequestKey = key
	stored.Header.Del("Set-Cookie")
	if stored.StoredAt.IsZero() {
		stored.StoredAt = s.now()
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", key, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := s.register(ctx, pipe, name); err != nil {
			return err
		}
		return pipe.HSet(ctx, partitionKey(name), key, data).Err()
	})
	if err != nil {
		return fmt.Errorf("put %s into %s: %w", key, name, err)
	}
	return nil
}

func (s *RedisStore) MatchIn(ctx context.Context, name, key string) (*models.ResponseSnapshot, error) {
	data, err := s.client.HGet(ctx, partitionKey(name), key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("match %s in %s: %w", key, name, err)
	}

	var snap models.ResponseSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s in %s: %w", key, name, err)
	}
	return &snap, nil
}

func (s *RedisStore) Match(ctx context.Context, key string) (*models.ResponseSnapshot, error) {
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		snap, err := s.MatchIn(ctx, name, key)
		if err == ErrCacheMiss {
			continue
		}
		if err != nil {
			return nil, err
		}
		return snap, nil
	}
	return nil, ErrCacheMiss
}

// Keys lists partition names in creation order.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	names, err := s.client.ZRange(ctx, namesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	return names, nil
}

// Entries lists the request keys stored in a partition, sorted.
func (s *RedisStore) Entries(ctx context.Context, name string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, partitionKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", name, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete drops the partition and every entry in it. It reports whether the
// partition existed.
func (s *RedisStore) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, namesKey, name)
		return pipe.Del(ctx, partitionKey(name)).Err()
	})
	if err != nil {
		return false, fmt.Errorf("delete partition %s: %w", name, err)
	}
	return removed.Val() > 0, nil
}

func (s *RedisStore) ActiveVersion(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, activeVersionKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read active version: %w", err)
	}
	return v, nil
}

func (s *RedisStore) SetActiveVersion(ctx context.Context, version string) error {
	if err := s.client.Set(ctx, activeVersionKey, version, 0).Err(); err != nil {
		return fmt.Errorf("record active version: %w", err)
	}
	return nil
}
