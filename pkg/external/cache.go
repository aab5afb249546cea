package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CacheClient wraps a Redis client for JSON values with expiry
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
	prefix     string
}

// cachedValue wraps a cached value with metadata
type cachedValue struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewCacheClient creates a new cache client and checks connectivity
func NewCacheClient(ctx context.Context, config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
		prefix:     "evogene",
	}, nil
}

// Get decodes the value stored under key into dest. The boolean reports a hit.
func (c *CacheClient) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	fullKey := c.key(key)

	val, err := c.redis.Get(ctx, fullKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var cached cachedValue
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, fullKey)
		return false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, fullKey)
		return false, nil
	}

	if err := json.Unmarshal(cached.Data, dest); err != nil {
		c.redis.Del(ctx, fullKey)
		return false, nil
	}
	return true, nil
}

// Set stores value under key. A zero ttl uses the default.
func (c *CacheClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	now := time.Now()
	payload, err := json.Marshal(cachedValue{
		Data:      data,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	return c.redis.Set(ctx, c.key(key), payload, ttl).Err()
}

// Delete removes key
func (c *CacheClient) Delete(ctx context.Context, key string) error {
	return c.redis.Del(ctx, c.key(key)).Err()
}

// Ping checks if Redis connection is alive
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func (c *CacheClient) key(key string) string {
	return c.prefix + ":" + key
}

// QueryKey builds a cache key for a free text query. Case and surrounding
// whitespace do not change the key.
func QueryKey(namespace, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s:%x", namespace, hash[:16])
}
