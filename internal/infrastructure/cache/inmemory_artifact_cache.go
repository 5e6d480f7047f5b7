package cache

import (
	"context"
	"sync"
	"time"
)

// defaultMaxEntries bounds the in-memory cache when no limit is given
const defaultMaxEntries = 256

// entry represents a cached artifact with expiration
type entry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryArtifactCache implements ArtifactCache using an in-memory map
// This is suitable for single-instance deployments and testing
type InMemoryArtifactCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
	stopChan   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewInMemoryArtifactCache creates a new in-memory artifact cache holding at
// most maxEntries artifacts (defaultMaxEntries when maxEntries <= 0).
// It starts a background goroutine to clean up expired entries
func NewInMemoryArtifactCache(maxEntries int) *InMemoryArtifactCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	c := &InMemoryArtifactCache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get returns a copy of the cached artifact for key
func (c *InMemoryArtifactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists || e.expired(c.now()) {
		return nil, false, nil
	}

	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true, nil
}

// Set stores a copy of data under key
func (c *InMemoryArtifactCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	now := c.now()
	e := entry{data: stored}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = e
	return nil
}

// Delete removes key
func (c *InMemoryArtifactCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// evictLocked drops expired entries, or failing that the entry closest to
// expiry. Entries without expiry are evicted last. Caller holds mu.
func (c *InMemoryArtifactCache) evictLocked(now time.Time) {
	var victim string
	var victimExpiry time.Time
	found := false

	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			continue
		}
		if !found {
			victim, victimExpiry, found = key, e.expiresAt, true
			continue
		}
		if victimExpiry.IsZero() || (!e.expiresAt.IsZero() && e.expiresAt.Before(victimExpiry)) {
			victim, victimExpiry = key, e.expiresAt
		}
	}

	if len(c.entries) >= c.maxEntries && found {
		delete(c.entries, victim)
	}
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (c *InMemoryArtifactCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (c *InMemoryArtifactCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries from the cache
func (c *InMemoryArtifactCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries in the cache (for testing/monitoring)
func (c *InMemoryArtifactCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure InMemoryArtifactCache implements ArtifactCache
var _ ArtifactCache = (*InMemoryArtifactCache)(nil)
