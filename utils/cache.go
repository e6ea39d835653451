// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"pwashop/config"

	"github.com/go-redis/redis/v8"
)

var (
	// CacheClient backs the versioned cache partitions.
	CacheClient *redis.Client
	// LocalClient backs the client-persisted key/value store and pending sync actions.
	LocalClient *redis.Client
)

func newRedisClient(db int, purpose string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (%s): %v", purpose, err)
	}
	return client
}

// InitCache initializes the Redis client holding cache partitions.
func InitCache() {
	CacheClient = newRedisClient(config.AppConfig.RedisCacheDB, "Cache")
}

// GetCacheClient returns the partition cache client.
func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		InitCache()
	}
	return CacheClient
}

// InitLocalCache initializes the Redis client for local key/value state.
func InitLocalCache() {
	LocalClient = newRedisClient(config.AppConfig.RedisLocalDB, "Local")
}

// GetLocalCacheClient returns the local key/value client.
func GetLocalCacheClient() *redis.Client {
	if LocalClient == nil {
		InitLocalCache()
	}
	return LocalClient
}
