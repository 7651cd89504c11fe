// Command api runs the poscore HTTP server: the Gin router assembled by
// internal/httpapi, backed by Postgres/RLS, the Redis menu cache, the
// payment provider orchestra, and the WebSocket real-time hub.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cypherarest/poscore/internal/auth"
	"github.com/cypherarest/poscore/internal/cache"
	"github.com/cypherarest/poscore/internal/catalog"
	"github.com/cypherarest/poscore/internal/config"
	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/httpapi"
	"github.com/cypherarest/poscore/internal/idempotency"
	"github.com/cypherarest/poscore/internal/logger"
	"github.com/cypherarest/poscore/internal/orders"
	"github.com/cypherarest/poscore/internal/payments"
	"github.com/cypherarest/poscore/internal/realtime"
)

func main() {
	cfg := config.Load()
	logger.InitLogger(cfg.Stage)
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	version, err := db.SchemaVersion(ctx, pool)
	if err != nil {
		logger.Fatal("read schema version", zap.Error(err))
	}
	if err := cfg.CheckSchemaVersion(version); err != nil {
		logger.Fatal("schema version check failed", zap.Error(err))
	}

	redisAddr, redisPassword, redisDB := parseCacheURL(cfg.CacheURL)
	cacheC := cache.New(redisAddr, redisPassword, redisDB)
	defer cacheC.Close()

	queries := db.New(pool)
	idemStore := idempotency.New(queries)
	hub := realtime.NewHub()

	identityProvider := auth.NewCachingIdentityProvider(
		auth.NewHTTPIdentityProvider(cfg.IdentityProviderURL, cfg.RequestDeadline))
	verifier := auth.NewVerifier(identityProvider, queries, cfg)

	catalogSvc := catalog.New(pool, cacheC)
	ordersSvc := orders.New(pool, idemStore, hub)

	providers := buildProviders(cfg)
	paymentsSvc := payments.New(pool, idemStore, hub, 0, providers...)

	server := httpapi.NewServer(cfg, pool, cacheC, catalogSvc, ordersSvc, paymentsSvc, verifier, hub)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go paymentsSvc.RunSweeper(sweepCtx)
	defer stopSweep()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	go func() {
		logger.Info("api server starting", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	stopSweep()
	logger.Info("shutdown complete")
}

// buildProviders wires every configured payment provider; a provider whose
// secret is unset is still constructed but left disabled, so
// Service.selectProvider never routes traffic to it (§4.5).
func buildProviders(cfg *config.Config) []payments.Provider {
	return []payments.Provider{
		payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, 175, cfg.StripeSecretKey != ""),
		payments.NewSumUpProvider(cfg.SumUpSecretKey, cfg.SumUpWebhookSecret, 169, cfg.SumUpSecretKey != ""),
		payments.NewApplePayProvider(cfg.ApplePaySecretKey, cfg.ApplePayWebhookSecret, 150, cfg.ApplePaySecretKey != ""),
		payments.NewQRProvider(cfg.QRProviderSecret, cfg.QRProviderWebhookSecret, 0, cfg.QRProviderSecret != ""),
	}
}

// parseCacheURL splits a redis://[:password@]host:port/db URL into the
// pieces cache.New expects, falling back to DB 0 and no password on a bare
// host:port value.
func parseCacheURL(raw string) (addr, password string, dbIndex int) {
	if raw == "" {
		return "127.0.0.1:6379", "", 0
	}

	trimmed := raw
	for _, prefix := range []string{"redis://", "rediss://"} {
		if len(trimmed) > len(prefix) && trimmed[:len(prefix)] == prefix {
			trimmed = trimmed[len(prefix):]
		}
	}

	if at := indexByte(trimmed, '@'); at >= 0 {
		userinfo := trimmed[:at]
		trimmed = trimmed[at+1:]
		if colon := indexByte(userinfo, ':'); colon >= 0 {
			password = userinfo[colon+1:]
		}
	}

	if slash := indexByte(trimmed, '/'); slash >= 0 {
		for _, ch := range trimmed[slash+1:] {
			if ch < '0' || ch > '9' {
				dbIndex = 0
				break
			}
			dbIndex = dbIndex*10 + int(ch-'0')
		}
		trimmed = trimmed[:slash]
	}

	return trimmed, password, dbIndex
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
