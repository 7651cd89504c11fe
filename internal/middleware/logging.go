package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cypherarest/poscore/internal/logger"
	"github.com/cypherarest/poscore/internal/tenant"
)

// LogRequest logs method, path, status, latency, and tenant-context fields
// for every request. The bearer token is never read or logged here, per
// §4.7/§7's "never the token" requirement.
func LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var bodyBytes []byte
		if c.Request.Body != nil && c.Request.ContentLength > 0 && c.Request.ContentLength < 1<<20 {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("correlation_id", GetCorrelationID(c)),
		}

		if tc, err := tenant.FromContext(c.Request.Context()); err == nil {
			fields = append(fields,
				zap.String("user_id", tc.UserID.String()),
				zap.String("role", tc.Role),
			)
			if tc.HasRestaurant {
				fields = append(fields, zap.String("restaurant_id", tc.RestaurantID.String()))
			}
		}

		if c.Writer.Status() >= 500 {
			logger.Error("request completed", fields...)
		} else {
			logger.Info("request completed", fields...)
		}
	}
}
