package backgroundsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"pwashop/models"

	"github.com/go-redis/redis/v8"
)

// PendingStore keeps queued actions per user and tag, ordered by arrival and
// unique by idempotency key.
type PendingStore struct {
	client *redis.Client
}

func NewPendingStore(client *redis.Client) *PendingStore {
	return &PendingStore{client: client}
}

func orderKey(userID, tag string) string  { return "sync:pending:" + userID + ":" + tag }
func actionKey(userID, tag string) string { return "sync:actions:" + userID + ":" + tag }

// addScript writes body and order entry in one step. A body left without an
// order entry is taken over by the new action.
var addScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	if redis.call('ZSCORE', KEYS[2], ARGV[1]) then
		return 0
	end
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
redis.call('ZADD', KEYS[2], 'NX', ARGV[3], ARGV[1])
return 1
`)

// Add stores action unless one with the same idempotency key is pending.
func (s *PendingStore) Add(ctx context.Context, action models.SyncAction) (bool, error) {
	raw, err := json.Marshal(action)
	if err != nil {
		return false, fmt.Errorf("encode sync action: %w", err)
	}

	keys := []string{actionKey(action.UserID, action.Tag), orderKey(action.UserID, action.Tag)}
	score := strconv.FormatInt(action.QueuedAt.UnixNano(), 10)
	added, err := addScript.Run(ctx, s.client, keys, action.IdempotencyKey, raw, score).Int()
	if err != nil {
		return false, fmt.Errorf("store sync action %s: %w", action.IdempotencyKey, err)
	}
	return added == 1, nil
}

// List returns the pending actions of one user's tag in queued order.
func (s *PendingStore) List(ctx context.Context, userID, tag string) ([]models.SyncAction, error) {
	keys, err := s.client.ZRange(ctx, orderKey(userID, tag), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sync actions for %s: %w", tag, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.HMGet(ctx, actionKey(userID, tag), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sync actions for %s: %w", tag, err)
	}

	out := make([]models.SyncAction, 0, len(keys))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Order entry without a body; drop it.
			s.client.ZRem(ctx, orderKey(userID, tag), keys[i])
			continue
		}
		var a models.SyncAction
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode sync action %s: %w", keys[i], err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *PendingStore) Remove(ctx context.Context, userID, tag, idempotencyKey string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, orderKey(userID, tag), idempotencyKey)
		pipe.HDel(ctx, actionKey(userID, tag), idempotencyKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove sync action %s: %w", idempotencyKey, err)
	}
	return nil
}

func (s *PendingStore) Count(ctx context.Context, userID, tag string) (int64, error) {
	n, err := s.client.ZCard(ctx, orderKey(userID, tag)).Result()
	if err != nil {
		return 0, fmt.Errorf("count sync actions for %s: %w", tag, err)
	}
	return n, nil
}
