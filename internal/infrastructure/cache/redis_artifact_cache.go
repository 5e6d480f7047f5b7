package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisArtifactCache implements ArtifactCache using Redis
// This is suitable for distributed deployments where multiple instances
// should reuse each other's renders
type RedisArtifactCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisArtifactCache creates a new Redis-based artifact cache
func NewRedisArtifactCache(cfg RedisConfig) (*RedisArtifactCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisArtifactCache{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}, nil
}

// NewRedisArtifactCacheWithClient creates a cache with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisArtifactCacheWithClient(client *redis.Client, keyPrefix string) *RedisArtifactCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisArtifactCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the cached artifact for key
func (c *RedisArtifactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached artifact: %w", err)
	}
	return data, true, nil
}

// Set stores an artifact with a TTL
func (c *RedisArtifactCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache artifact: %w", err)
	}
	return nil
}

// Delete removes a cached artifact
func (c *RedisArtifactCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cached artifact: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisArtifactCache) Close() error {
	return c.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (c *RedisArtifactCache) GetClient() *redis.Client {
	return c.client
}

// Ensure RedisArtifactCache implements ArtifactCache
var _ ArtifactCache = (*RedisArtifactCache)(nil)
