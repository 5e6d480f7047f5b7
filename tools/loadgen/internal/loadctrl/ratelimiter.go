// Package loadctrl paces the load generator.
package loadctrl

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterStats contains statistics about rate limiter usage.
type RateLimiterStats struct {
	TotalAcquired int64
	TotalRejected int64
	CurrentQPS    float64
	AvgWaitTime   time.Duration
}

// TokenBucketLimiter paces requests with golang.org/x/time/rate.
//
// Thread Safety: Safe for concurrent use.
type TokenBucketLimiter struct {
	limiter *rate.Limiter

	totalAcquired atomic.Int64
	totalRejected atomic.Int64
	totalWaitTime atomic.Int64 // nanoseconds
}

// NewTokenBucketLimiter creates a limiter for qps requests per second.
// If burst is 0, it defaults to max(1, int(qps)).
func NewTokenBucketLimiter(qps float64, burst int) *TokenBucketLimiter {
	if qps <= 0 {
		qps = 1
	}
	if burst <= 0 {
		burst = max(1, int(qps))
	}
	return &TokenBucketLimiter{limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// Acquire blocks until a request slot is available or ctx is done.
func (l *TokenBucketLimiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	l.totalAcquired.Add(1)
	l.totalWaitTime.Add(int64(time.Since(start)))
	return nil
}

// TryAcquire takes a slot without blocking.
func (l *TokenBucketLimiter) TryAcquire() bool {
	if l.limiter.Allow() {
		l.totalAcquired.Add(1)
		return true
	}
	l.totalRejected.Add(1)
	return false
}

// SetRate changes the rate; the new rate takes effect immediately.
func (l *TokenBucketLimiter) SetRate(qps float64) {
	if qps <= 0 {
		qps = 1
	}
	l.limiter.SetLimit(rate.Limit(qps))
}

// CurrentRate returns the configured QPS.
func (l *TokenBucketLimiter) CurrentRate() float64 {
	return float64(l.limiter.Limit())
}

// Stats returns current statistics.
func (l *TokenBucketLimiter) Stats() RateLimiterStats {
	acquired := l.totalAcquired.Load()
	var avg time.Duration
	if acquired > 0 {
		avg = time.Duration(l.totalWaitTime.Load() / acquired)
	}
	return RateLimiterStats{
		TotalAcquired: acquired,
		TotalRejected: l.totalRejected.Load(),
		CurrentQPS:    l.CurrentRate(),
		AvgWaitTime:   avg,
	}
}
