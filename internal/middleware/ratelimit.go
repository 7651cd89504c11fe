package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cypherarest/poscore/internal/tenant"
)

// RateLimiter is a per-client token-bucket limiter, adapted from the
// teacher's libs/go/middleware/ratelimit.go. It backs both the default HTTP
// limiter and, reused directly, the Real-time Hub's per-connection message
// limit (§4.6); the hub's per-user and per-IP caps count connections and do
// not use this limiter.
type RateLimiter struct {
	limiters        sync.Map // key -> *limiterEntry
	rps             int
	burst           int
	cleanupInterval time.Duration
	idleTimeout     time.Duration
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter builds a limiter keyed by an arbitrary string identifier
// and starts its background cleanup goroutine.
func NewRateLimiter(rps, burst int) *RateLimiter {
	rl := &RateLimiter{
		rps:             rps,
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
		idleTimeout:     10 * time.Minute,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		rl.limiters.Range(func(key, value any) bool {
			entry := value.(*limiterEntry)
			if now.Sub(entry.lastAccess) > rl.idleTimeout {
				rl.limiters.Delete(key)
			}
			return true
		})
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := rl.limiters.Load(key); ok {
		entry := v.(*limiterEntry)
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	entry := &limiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(rl.rps), rl.burst),
		lastAccess: time.Now(),
	}
	actual, _ := rl.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry).limiter
}

// Allow reports whether the client identified by key may proceed right now,
// consuming one token if so. Used directly by the WebSocket hub for its
// per-connection message limit, keyed by connection ID (§4.6).
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

func getClientIdentifier(c *gin.Context) string {
	if v, ok := c.Get("tenantContext"); ok {
		if tc, ok := v.(tenant.Context); ok {
			return "user:" + tc.UserID.String()
		}
	}
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return "ip:" + fwd
	}
	return "ip:" + c.ClientIP()
}

// Middleware enforces the limiter on every request except health checks,
// returning 429 with rate-limit headers when exceeded (§7 error taxonomy:
// rate_limited).
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}

		key := getClientIdentifier(c)
		limiter := rl.getLimiter(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rps))
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"code": "rate_limited", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}

// Default, strict, and relaxed presets, matching the teacher's globals.
var (
	DefaultRateLimiter = NewRateLimiter(100, 200)
	StrictRateLimiter  = NewRateLimiter(10, 20)
	RelaxedRateLimiter = NewRateLimiter(500, 1000)
)
