package lock

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type versionClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisVersion is a change counter shared by every instance using the same
// Redis. Writers bump it after committing; readers compare it before
// trusting a local cache.
type RedisVersion struct {
	rdb versionClient
	key string
}

// NewRedisVersion keeps the counter at cashbook:version:<name>.
func NewRedisVersion(rdb versionClient, name string) *RedisVersion {
	return &RedisVersion{rdb: rdb, key: "cashbook:version:" + name}
}

// Current returns the counter, zero when it was never bumped.
func (v *RedisVersion) Current(ctx context.Context) (int64, error) {
	n, err := v.rdb.Get(ctx, v.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version %s: %w", v.key, err)
	}
	return n, nil
}

// Bump increments the counter and returns the new value.
func (v *RedisVersion) Bump(ctx context.Context) (int64, error) {
	n, err := v.rdb.Incr(ctx, v.key).Result()
	if err != nil {
		return 0, fmt.Errorf("bump version %s: %w", v.key, err)
	}
	return n, nil
}
