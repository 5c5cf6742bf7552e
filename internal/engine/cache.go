package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by KV.Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// KV is the cache backing store. Redis in production; tests use miniredis or
// an in-memory fake.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisKV implements KV over go-redis.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (kv *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := kv.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (kv *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := kv.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (kv *RedisKV) Delete(ctx context.Context, key string) error {
	if err := kv.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// ContextCache is the read-through cache for assembled contexts, keyed by
// tenant id. Hits are returned verbatim until TTL expiry; the administrative
// CRUD paths call Invalidate when configuration changes.
type ContextCache struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewContextCache(kv KV, ttl time.Duration, logger *zap.Logger) *ContextCache {
	return &ContextCache{kv: kv, ttl: ttl, logger: logger}
}

func (c *ContextCache) key(tenantID string) string {
	return "context:" + tenantID
}

// GetOrBuild returns the cached context for the tenant, invoking build on a
// miss and storing the result with the configured TTL. Cache failures fail
// open: a broken read counts as a miss, a broken write is skipped, and the
// request still succeeds.
func (c *ContextCache) GetOrBuild(ctx context.Context, tenantID string, build func(context.Context) (*AssembledContext, error)) (*AssembledContext, error) {
	cached, err := c.kv.Get(ctx, c.key(tenantID))
	if err == nil {
		var cx AssembledContext
		if err := json.Unmarshal([]byte(cached), &cx); err == nil {
			return &cx, nil
		}
		c.logger.Warn("discarding undecodable cached context",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("context cache read failed, treating as miss",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}

	cx, err := build(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cx)
	if err != nil {
		c.logger.Warn("context not cacheable", zap.String("tenant_id", tenantID), zap.Error(err))
		return cx, nil
	}
	if err := c.kv.Set(ctx, c.key(tenantID), string(data), c.ttl); err != nil {
		c.logger.Warn("context cache write failed, skipping",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
	return cx, nil
}

// Invalidate drops the cached context for a tenant. Idempotent; deleting a
// key that is not cached is not an error.
func (c *ContextCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.kv.Delete(ctx, c.key(tenantID)); err != nil {
		return fmt.Errorf("invalidate context %s: %w", tenantID, err)
	}
	return nil
}
