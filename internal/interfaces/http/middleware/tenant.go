package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Gin context keys and headers for the caller identity
const (
	TenantIDKey     = "tenant_id"
	UserIDKey       = "user_id"
	TenantHeaderKey = "X-Tenant-ID"
	UserHeaderKey   = "X-User-ID"
)

// ErrCodeInvalidTenant is returned for a malformed tenant or user header
const ErrCodeInvalidTenant = "ERR_INVALID_TENANT"

// TenantConfig holds configuration for the tenant middleware
type TenantConfig struct {
	// DefaultTenantID is used when the request carries no X-Tenant-ID.
	// uuid.Nil makes the header mandatory.
	DefaultTenantID uuid.UUID
	// SkipPaths are paths that don't need a tenant (health checks)
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		DefaultTenantID: uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		SkipPaths:       []string{"/health", "/healthz", "/ready", "/api/v1/health", "/api/v1/system"},
		Logger:          zap.NewNop(),
	}
}

// Tenant resolves the calling tenant and optional user from headers and
// stores them in the gin context and the request context
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		tenantID := cfg.DefaultTenantID
		if raw := c.GetHeader(TenantHeaderKey); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				log.Debug("Rejected tenant header", zap.String("value", truncate(raw, 64)))
				respondInvalidTenant(c, "Invalid tenant ID format")
				return
			}
			tenantID = parsed
		}
		if tenantID == uuid.Nil {
			respondInvalidTenant(c, "Tenant identification required")
			return
		}

		var userID uuid.UUID
		if raw := c.GetHeader(UserHeaderKey); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				respondInvalidTenant(c, "Invalid user ID format")
				return
			}
			userID = parsed
		}

		c.Set(TenantIDKey, tenantID)
		ctx := logger.WithTenantID(c.Request.Context(), tenantID.String())
		if userID != uuid.Nil {
			c.Set(UserIDKey, userID)
			ctx = logger.WithUserID(ctx, userID.String())
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetTenantID returns the tenant resolved by Tenant
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// GetUserID returns the user resolved by Tenant, if the request named one
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func respondInvalidTenant(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
		ErrCodeInvalidTenant, message, GetRequestID(c),
	))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
