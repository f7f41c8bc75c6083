package exchange

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisCache shares rates between server and cronjob processes.  Redis
// errors read as misses.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache stores rates under keys starting with prefix.
func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "elib:fx"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, key string) (decimal.Decimal, bool) {
	s, err := r.rdb.Get(ctx, r.prefix+":"+key).Result()
	if err != nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (r *RedisCache) Set(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) {
	_ = r.rdb.Set(ctx, r.prefix+":"+key, rate.String(), ttl).Err()
}

// CacheFor picks RedisCache when a client is available.
func CacheFor(rdb *redis.Client) Cache {
	if rdb == nil {
		return NewMemoryCache()
	}
	return NewRedisCache(rdb, "")
}
