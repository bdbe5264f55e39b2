package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flatfinder/flatfinder/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Get returns "" on cache miss, error only on real failures.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

func (c *RedisCache) Decr(ctx context.Context, key string) (int64, error) {
	return c.Client.Decr(ctx, key).Result()
}

// SetNX sets key only if absent; returns whether it was set. Used as the
// notification throttle: the first sender inside the window wins the right to
// trigger a push, everyone else is suppressed until the TTL expires.
func (c *RedisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, key, value, ttl).Result()
}

// KeyForLikeCount generates the Redis key for a user's like count.
func (c *RedisCache) KeyForLikeCount(uid string) string {
	return fmt.Sprintf("likes:count:%s", uid)
}

// KeyForFilters generates the Redis key for a user's saved discovery filters.
func (c *RedisCache) KeyForFilters(uid string) string {
	return fmt.Sprintf("discover:filters:%s", uid)
}

// KeyForGroupNotify generates the Redis key throttling push triggers per group.
func (c *RedisCache) KeyForGroupNotify(groupID string) string {
	return fmt.Sprintf("notify:group:%s", groupID)
}
