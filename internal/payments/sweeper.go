package payments

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/logger"
	"github.com/cypherarest/poscore/internal/tenant"
	"go.uber.org/zap"
)

// sweepInterval is how often the reconciliation sweep runs (§4.5: "polls
// pending intents every 3s up to the intent's TTL").
const sweepInterval = 3 * time.Second

// RunSweeper polls provider status for every still-pending payment and fails
// those whose provider reports failure, or whose own intent TTL has elapsed
// without a webhook or a successful poll, so an order never waits forever on
// a webhook that was dropped in transit. It blocks until ctx is cancelled;
// callers run it in its own goroutine from cmd/api/main.go.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				logger.Error("payment sweeper pass failed", zap.Error(err))
			}
		}
	}
}

// sweepOnce reads across every tenant in one platform-owner-scoped
// transaction, then applies each correction through the normal per-call
// tenant-bound paths so RLS is never bypassed.
func (s *Service) sweepOnce(ctx context.Context) error {
	sweepCtx := tenant.WithContext(ctx, tenant.Context{IsPlatformOwner: true})

	var pending []db.Payment
	if err := tenant.WithTx(sweepCtx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		pending, err = db.New(tx).ListPendingIntents(ctx)
		return err
	}); err != nil {
		return err
	}

	now := time.Now()
	for _, payment := range pending {
		provider, ok := s.providers[payment.Provider]
		if !ok || !payment.ProviderIntentRef.Valid {
			continue
		}

		if now.Sub(payment.CreatedAt) > provider.IntentTTL() {
			err := tenant.WithTx(sweepCtx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
				return db.New(tx).MarkPaymentStatus(ctx, payment.ID, db.PaymentStatusFailed)
			})
			if err != nil {
				logger.Warn("sweeper: expire stale intent failed", zap.String("payment_id", payment.ID.String()), zap.Error(err))
			}
			continue
		}

		status, err := provider.Confirm(ctx, payment.ProviderIntentRef.String)
		if err != nil {
			logger.Warn("sweeper: provider confirm failed",
				zap.String("payment_id", payment.ID.String()), zap.Error(err))
			continue
		}

		switch status {
		case IntentCaptured:
			if err := s.applyCapture(ctx, payment.Provider, WebhookEvent{
				Provider: payment.Provider, IntentRef: payment.ProviderIntentRef.String,
				Status: IntentCaptured, OccurredAt: time.Now(),
			}); err != nil {
				logger.Warn("sweeper: capture apply failed", zap.String("payment_id", payment.ID.String()), zap.Error(err))
			}
		case IntentFailed:
			err := tenant.WithTx(sweepCtx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
				return db.New(tx).MarkPaymentStatus(ctx, payment.ID, db.PaymentStatusFailed)
			})
			if err != nil {
				logger.Warn("sweeper: mark failed status failed", zap.String("payment_id", payment.ID.String()), zap.Error(err))
			}
		}
	}
	return nil
}
