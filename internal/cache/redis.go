package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// RedisCache is a Cache backed by Redis, values JSON encoded.
// Redis failures degrade to misses and are logged.
type RedisCache[T any] struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewRedisCache creates a cache storing keys under namespace.
func NewRedisCache[T any](client redis.UniversalClient, namespace string, ttl time.Duration, logger *slog.Logger) *RedisCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache[T]{client: client, namespace: namespace, ttl: ttl, logger: logger}
}

func (c *RedisCache[T]) key(k string) string { return c.namespace + ":" + k }

func (c *RedisCache[T]) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// Get retrieves a value from Redis
func (c *RedisCache[T]) Get(key string) (T, bool) {
	var zero T
	ctx, cancel := c.ctx()
	defer cancel()

	b, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Redis get failed", "key", key, "error", err)
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		c.logger.Warn("Redis value decode failed", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

// Set stores a value with the configured TTL
func (c *RedisCache[T]) Set(key string, data T) {
	b, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("Redis value encode failed", "key", key, "error", err)
		return
	}
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.client.Set(ctx, c.key(key), b, c.ttl).Err(); err != nil {
		c.logger.Warn("Redis set failed", "key", key, "error", err)
	}
}

// Delete removes a key
func (c *RedisCache[T]) Delete(key string) {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Warn("Redis delete failed", "key", key, "error", err)
	}
}

// DeletePrefix scans and removes every key under prefix
func (c *RedisCache[T]) DeletePrefix(prefix string) int {
	ctx, cancel := c.ctx()
	defer cancel()

	removed := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.key(prefix)+"*", 100).Result()
		if err != nil {
			c.logger.Warn("Redis scan failed", "prefix", prefix, "error", err)
			return removed
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.logger.Warn("Redis delete failed", "prefix", prefix, "error", err)
				return removed
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed
		}
	}
}

// Size counts the keys in the namespace
func (c *RedisCache[T]) Size() int {
	ctx, cancel := c.ctx()
	defer cancel()

	n := 0
	iter := c.client.Scan(ctx, 0, c.namespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Redis scan failed", "error", err)
	}
	return n
}

// Tiered puts a local cache in front of a shared one.
type Tiered[T any] struct {
	local  *LRUCache[T]
	shared Cache[T]
}

// NewTiered combines a local LRU with a shared cache.
func NewTiered[T any](local *LRUCache[T], shared Cache[T]) *Tiered[T] {
	return &Tiered[T]{local: local, shared: shared}
}

func (t *Tiered[T]) Get(key string) (T, bool) {
	if v, ok := t.local.Get(key); ok {
		return v, true
	}
	v, ok := t.shared.Get(key)
	if ok {
		t.local.Set(key, v)
	}
	return v, ok
}

func (t *Tiered[T]) Set(key string, data T) {
	t.local.Set(key, data)
	t.shared.Set(key, data)
}

func (t *Tiered[T]) Delete(key string) {
	t.local.Delete(key)
	t.shared.Delete(key)
}

func (t *Tiered[T]) DeletePrefix(prefix string) int {
	n := t.local.DeletePrefix(prefix)
	if m := t.shared.DeletePrefix(prefix); m > n {
		n = m
	}
	return n
}

func (t *Tiered[T]) Size() int { return t.local.Size() }

// CleanExpired cleans the local tier; Redis expires keys itself.
func (t *Tiered[T]) CleanExpired() int { return t.local.CleanExpired() }
