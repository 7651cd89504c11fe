// Package middleware holds cross-cutting Gin middleware: correlation IDs,
// rate limiting, request validation, and request logging, adapted from the
// teacher's libs/go/middleware package.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cypherarest/poscore/internal/logger"
)

// CorrelationIDHeader is the header clients may set (and that the server
// always echoes back) to correlate a request across logs and responses.
const CorrelationIDHeader = "X-Correlation-ID"

const correlationGinKey = "correlationID"

type contextKey string

const correlationContextKey contextKey = "correlationID"

// CorrelationIDMiddleware assigns (or propagates) a correlation ID for every
// request, storing it both on the Gin context and on the request's
// context.Context so background work started from this request can still
// reach it.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(correlationGinKey, id)
		c.Header(CorrelationIDHeader, id)

		ctx := context.WithValue(c.Request.Context(), correlationContextKey, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetCorrelationID reads the correlation ID set on a Gin context.
func GetCorrelationID(c *gin.Context) string {
	if v, ok := c.Get(correlationGinKey); ok {
		return v.(string)
	}
	return ""
}

// CorrelationIDFromContext reads the correlation ID from a context.Context,
// used by code paths (services, webhook handlers) that don't see *gin.Context.
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationContextKey).(string); ok {
		return v
	}
	return ""
}

// LogWithCorrelationID returns a logger pre-tagged with the request's
// correlation id, matching the teacher's helper of the same name.
func LogWithCorrelationID(ctx context.Context) *zap.Logger {
	return logger.With(zap.String("correlation_id", CorrelationIDFromContext(ctx)))
}
