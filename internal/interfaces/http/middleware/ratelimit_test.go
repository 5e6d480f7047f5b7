package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("k"))
	assert.Equal(t, 1, rl.Remaining("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
	assert.Equal(t, 0, rl.Remaining("k"))

	// Other keys have their own window
	assert.True(t, rl.Allow("other"))

	ok, wait := rl.Reserve("k")
	assert.False(t, ok)
	assert.InDelta(t, float64(30*time.Second), float64(wait), float64(time.Millisecond))

	// one token back every half window
	now = now.Add(31 * time.Second)
	assert.Equal(t, 1, rl.Remaining("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	now = now.Add(time.Minute)
	assert.Equal(t, 2, rl.Remaining("k"))
	assert.Equal(t, 2, rl.Remaining("never-seen"))
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	router := gin.New()
	router.Use(RequestID(), Tenant(DefaultTenantConfig()), RateLimit(rl))
	router.POST("/api/v1/export/preview", okHandler)

	send := func(tenant string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/export/preview", nil)
		if tenant != "" {
			req.Header.Set(TenantHeaderKey, tenant)
		}
		router.ServeHTTP(w, req)
		return w
	}

	first := send("")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := send("")
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	// A different tenant from the same address is limited separately
	assert.Equal(t, http.StatusOK, send(uuid.NewString()).Code)
}
