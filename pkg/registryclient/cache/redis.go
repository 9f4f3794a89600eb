// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/logger"
)

// RedisCache is an optional Cache backend that lets the search cache be
// shared across CLI invocations/processes on one machine (§4.D allows any
// Map-shaped implementation; this one happens to be durable and shared).
// Values are JSON-encoded; Get/Put never return an error to satisfy the
// Cache[V] contract, so a backend failure degrades to a cache miss with a
// logged warning rather than failing the caller's operation.
type RedisCache[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	ctx    context.Context
}

// NewRedisCache constructs a RedisCache using an existing client, the
// "construct with an injected client" shape that keeps it testable
// against miniredis.
func NewRedisCache[V any](client *redis.Client, prefix string, ttl time.Duration) *RedisCache[V] {
	return &RedisCache[V]{client: client, prefix: prefix, ttl: ttl, ctx: context.Background()}
}

func (c *RedisCache[V]) key(key string) string {
	return c.prefix + key
}

// Get returns key's cached value, or false on miss or backend error.
func (c *RedisCache[V]) Get(key string) (V, bool) {
	var zero V
	data, err := c.client.Get(c.ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnf("redis cache get failed, treating as miss: %v", err)
		}
		return zero, false
	}

	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		logger.Warnf("redis cache entry for %q is corrupt, treating as miss: %v", key, err)
		return zero, false
	}
	return value, true
}

// Put stores value under key with the cache's configured TTL.
func (c *RedisCache[V]) Put(key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warnf("redis cache put failed to marshal value for %q: %v", key, err)
		return
	}
	if err := c.client.Set(c.ctx, c.key(key), data, c.ttl).Err(); err != nil {
		logger.Warnf("redis cache put failed for %q: %v", key, err)
	}
}

// Clear removes every key under this cache's prefix.
func (c *RedisCache[V]) Clear() {
	iter := c.client.Scan(c.ctx, 0, c.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(c.ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warnf("redis cache clear scan failed: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(c.ctx, keys...).Err(); err != nil {
		logger.Warnf("redis cache clear failed: %v", err)
	}
}

// Close releases the underlying Redis connection pool.
func (c *RedisCache[V]) Close() error {
	if err := c.client.Close(); err != nil {
		return skherrors.NewNetworkError("closing redis cache client", err)
	}
	return nil
}
