// Package cache provides caches for rendered export artifacts.
package cache

import (
	"context"
	"time"
)

// ArtifactCache stores encoded images keyed by render fingerprint.
// A miss is reported as (nil, false, nil); errors are reserved for backend
// failures, which callers log and treat as a miss.
type ArtifactCache interface {
	// Get returns the cached bytes for key
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key for ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Close releases background resources
	Close() error
}

// defaultKeyPrefix namespaces artifact keys in shared backends
const defaultKeyPrefix = "export:artifact:"
