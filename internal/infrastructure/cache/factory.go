package cache

import (
	"fmt"

	"github.com/storefront/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ArtifactCacheFactory creates artifact caches based on configuration
type ArtifactCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	maxEntries            int
}

// ArtifactCacheFactoryOption is a functional option for configuring the factory
type ArtifactCacheFactoryOption func(*ArtifactCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ArtifactCacheFactoryOption {
	return func(f *ArtifactCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory cache when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) ArtifactCacheFactoryOption {
	return func(f *ArtifactCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithMaxEntries bounds the in-memory cache
func WithMaxEntries(n int) ArtifactCacheFactoryOption {
	return func(f *ArtifactCacheFactory) {
		f.maxEntries = n
	}
}

// NewArtifactCacheFactory creates a new factory
func NewArtifactCacheFactory(cfg config.RedisConfig, opts ...ArtifactCacheFactoryOption) *ArtifactCacheFactory {
	f := &ArtifactCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisCache creates a Redis-based artifact cache
func (f *ArtifactCacheFactory) CreateRedisCache() (ArtifactCache, error) {
	c, err := NewRedisArtifactCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis artifact cache: %w", err)
	}
	return c, nil
}

// CreateInMemoryCache creates an in-memory artifact cache
// Cached renders are not shared across process instances
func (f *ArtifactCacheFactory) CreateInMemoryCache() ArtifactCache {
	return NewInMemoryArtifactCache(f.maxEntries)
}

// CreateCache creates a Redis cache when Redis is enabled, falling back to
// in-memory if Redis is unreachable and fallback is allowed
func (f *ArtifactCacheFactory) CreateCache() (ArtifactCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory artifact cache")
		return f.CreateInMemoryCache(), nil
	}

	c, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis artifact cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for artifact cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory artifact cache",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
