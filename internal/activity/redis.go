package activity

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list shared by server and worker.
const DefaultKey = "elib:activity"

// RedisStore keeps the feed in a capped Redis list (LPUSH + LTRIM).
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore stores the feed in the Redis list at key.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (r *RedisStore) Add(ctx context.Context, e Entry) error {
	bs, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, bs)
	pipe.LTrim(ctx, r.key, 0, MaxEntries-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	raw, err := r.rdb.LRange(ctx, r.key, 0, int64(clampLimit(limit)-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// StoreFor picks RedisStore when a client is available.
func StoreFor(rdb *redis.Client) Store {
	if rdb == nil {
		return NewMemoryStore(MaxEntries)
	}
	return NewRedisStore(rdb, "")
}
