package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// GinRequestIDKey is where the request ID middleware stores the ID
	GinRequestIDKey = "request_id"
	ginLoggerKey    = "logger"
)

// GinMiddleware writes one access line per request. Before the handlers run
// it puts a logger scoped to the request on the gin and request contexts.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		ctx := req.Context()
		if id := c.GetString(GinRequestIDKey); id != "" && GetRequestID(ctx) == "" {
			ctx = WithRequestID(ctx, id)
		}
		scoped := base.With(zap.String("method", req.Method), zap.String("path", req.URL.Path))
		c.Set(ginLoggerKey, Enrich(ctx, scoped))
		c.Request = req.WithContext(WithContext(ctx, scoped))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if q := req.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}
		// re-enrich: handlers may have attached tenant and user IDs
		Enrich(c.Request.Context(), scoped).Log(accessLevel(status), "HTTP Request", fields...)
	}
}

func accessLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Recovery turns a handler panic into a logged stack trace and a 500
// error envelope
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			base.Error("Panic recovered",
				zap.String("request_id", c.GetString(GinRequestIDKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("error", rec),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   gin.H{"code": "INTERNAL_ERROR", "message": "An internal error occurred"},
			})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request logger GinMiddleware stored, or a no-op
// logger outside of it
func GetGinLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Value(ginLoggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
