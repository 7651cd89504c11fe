package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cypherarest/poscore/internal/logger"
	"go.uber.org/zap"
)

// TxFunc runs inside a transaction that already has the caller's tenant
// context bound as Postgres session variables via SET LOCAL.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// serializationFailure is the Postgres error code used to detect retryable
// write conflicts (§5), matching the teacher's helpers/transaction.go check.
const serializationFailure = "40001"

// WithTx begins a transaction, issues the SET LOCAL prologue for the bound
// tenant context (§4.2: "every DB session borrowed for the request must, as
// part of its transaction prologue, set transaction-local session
// variables"), runs fn, and commits or rolls back. These variables reset
// automatically at commit/rollback because they are transaction-scoped, so
// no explicit reset step is needed on this path; the blanket-reset
// prohibition in §4.2/§9 applies to the pool-level connection-return path
// instead (see the AfterRelease hook set by db.NewPool in internal/db/pool.go).
// WithTx does not retry; WithTxRetry wraps it with serialization-failure retries.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn TxFunc) error {
	tc, err := FromContext(ctx)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err := bindSessionVars(ctx, tx, tc); err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// WithTxRetry retries the body on Postgres serialization failures, up to
// maxRetries times, mirroring the teacher's WithTransactionRetry.
func WithTxRetry(ctx context.Context, pool *pgxpool.Pool, maxRetries int, fn TxFunc) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := WithTx(ctx, pool, fn)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != serializationFailure {
			return err
		}
		lastErr = err
		logger.Warn("retrying transaction after serialization failure",
			zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return lastErr
}

// bindSessionVars issues the SET LOCAL prologue referenced by row-level
// security policies (§4.2). set_config's third argument pins the setting to
// the current transaction only.
func bindSessionVars(ctx context.Context, tx pgx.Tx, tc Context) error {
	restaurantID := ""
	if tc.HasRestaurant {
		restaurantID = tc.RestaurantID.String()
	}

	_, err := tx.Exec(ctx, `
		SELECT
			set_config('app.current_user_id', $1, true),
			set_config('app.current_user_email', $2, true),
			set_config('app.current_user_role', $3, true),
			set_config('app.current_restaurant_id', $4, true),
			set_config('app.is_platform_owner', $5, true)`,
		tc.UserID.String(), tc.Email, tc.Role, restaurantID, boolStr(tc.IsPlatformOwner))
	return err
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
