package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cypherarest/poscore/internal/config"
)

// ConfigureCORS builds the CORS middleware from configured origins/methods/
// headers, matching the teacher's apps/api/server/server.go configureCORS.
func ConfigureCORS(cfg *config.Config) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     cfg.CORSAllowedMethods,
		AllowHeaders:     cfg.CORSAllowedHeaders,
		ExposeHeaders:    []string{CorrelationIDHeader, "X-RateLimit-Limit", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
