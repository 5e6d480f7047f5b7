package loadctrl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiter_Defaults(t *testing.T) {
	l := NewTokenBucketLimiter(0, 0)
	assert.Equal(t, 1.0, l.CurrentRate())

	l = NewTokenBucketLimiter(50, 0)
	assert.Equal(t, 50.0, l.CurrentRate())
}

func TestTokenBucketLimiter_TryAcquire(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2)

	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire(), "burst is exhausted")

	stats := l.Stats()
	assert.Equal(t, int64(2), stats.TotalAcquired)
	assert.Equal(t, int64(1), stats.TotalRejected)
}

func TestTokenBucketLimiter_AcquireCancelled(t *testing.T) {
	l := NewTokenBucketLimiter(0.1, 1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Acquire(ctx))
	assert.Equal(t, int64(1), l.Stats().TotalAcquired)
}

func TestTokenBucketLimiter_SetRate(t *testing.T) {
	l := NewTokenBucketLimiter(5, 1)
	l.SetRate(25)
	assert.Equal(t, 25.0, l.Stats().CurrentQPS)
	l.SetRate(-3)
	assert.Equal(t, 1.0, l.CurrentRate())
}
