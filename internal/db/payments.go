package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreatePaymentParams inserts a new payment row, either a fresh intent
// (status pending) or a refund (negative AmountCents, RefundOfPaymentID set).
type CreatePaymentParams struct {
	RestaurantID          uuid.UUID
	OrderID               uuid.UUID
	Provider              Provider
	ProviderIntentRef     pgtype.Text
	AmountCents           int64
	Status                PaymentStatus
	CommissionRateBps     pgtype.Int8
	CommissionAmountCents pgtype.Int8
	RefundOfPaymentID     pgtype.UUID
	IdempotencyKey        pgtype.Text
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO payments (id, restaurant_id, order_id, provider, provider_intent_ref, amount_cents, status,
			commission_rate_bps, commission_amount_cents, refund_of_payment_id, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING id, restaurant_id, order_id, provider, provider_intent_ref, provider_payment_ref, amount_cents, status,
			commission_rate_bps, commission_amount_cents, refund_of_payment_id, idempotency_key, created_at, updated_at`,
		uuid.New(), arg.RestaurantID, arg.OrderID, arg.Provider, arg.ProviderIntentRef, arg.AmountCents, arg.Status,
		arg.CommissionRateBps, arg.CommissionAmountCents, arg.RefundOfPaymentID, arg.IdempotencyKey)
	return scanPayment(row)
}

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, order_id, provider, provider_intent_ref, provider_payment_ref, amount_cents, status,
			commission_rate_bps, commission_amount_cents, refund_of_payment_id, idempotency_key, created_at, updated_at
		FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (q *Queries) GetPaymentByIdempotencyKey(ctx context.Context, orderID uuid.UUID, key string) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, order_id, provider, provider_intent_ref, provider_payment_ref, amount_cents, status,
			commission_rate_bps, commission_amount_cents, refund_of_payment_id, idempotency_key, created_at, updated_at
		FROM payments WHERE order_id = $1 AND idempotency_key = $2`, orderID, key)
	return scanPayment(row)
}

// GetPaymentByIntentRef looks up the payment row tracking a given
// provider-side intent, used to resolve inbound webhook events back to the
// order they belong to (§4.5 step 2).
func (q *Queries) GetPaymentByIntentRef(ctx context.Context, provider Provider, intentRef string) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, order_id, provider, provider_intent_ref, provider_payment_ref, amount_cents, status,
			commission_rate_bps, commission_amount_cents, refund_of_payment_id, idempotency_key, created_at, updated_at
		FROM payments WHERE provider = $1 AND provider_intent_ref = $2`, provider, intentRef)
	return scanPayment(row)
}

// GetCapturedPaymentForOrderForUpdate locks and returns the order's current
// captured payment, if any, enforcing "at most one payment per order may
// hold status captured" (§3 invariant, §4.5 double-capture guard).
func (q *Queries) GetCapturedPaymentForOrderForUpdate(ctx context.Context, orderID uuid.UUID) (Payment, bool, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, order_id, provider, provider_intent_ref, provider_payment_ref, amount_cents, status,
			commission_rate_bps, commission_amount_cents, refund_of_payment_id, idempotency_key, created_at, updated_at
		FROM payments WHERE order_id = $1 AND status = 'captured' AND refund_of_payment_id IS NULL
		ORDER BY created_at LIMIT 1 FOR UPDATE`, orderID)
	p, err := scanPayment(row)
	if err == pgx.ErrNoRows {
		return Payment{}, false, nil
	}
	if err != nil {
		return Payment{}, false, err
	}
	return p, true, nil
}

// ListPendingPaymentsForOrderForUpdate locks every in-flight pending payment
// for an order, so a successful capture can fail the others (§4.5 step 3).
func (q *Queries) ListPendingPaymentsForOrderForUpdate(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, restaurant_id, order_id, provider, provider_intent_ref, provider_payment_ref, amount_cents, status,
			commission_rate_bps, commission_amount_cents, refund_of_payment_id, idempotency_key, created_at, updated_at
		FROM payments WHERE order_id = $1 AND status = 'pending' FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) MarkPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	_, err := q.db.Exec(ctx, `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// SumCapturedAndRefunds supports the refund-additivity law (§8): cumulative
// refunded must never exceed the original captured amount.
func (q *Queries) SumCapturedAndRefunds(ctx context.Context, orderID uuid.UUID) (capturedCents int64, refundedCents int64, err error) {
	row := q.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'captured' AND refund_of_payment_id IS NULL), 0),
			COALESCE(-SUM(amount_cents) FILTER (WHERE status = 'refunded' AND refund_of_payment_id IS NOT NULL), 0)
		FROM payments WHERE order_id = $1`, orderID)
	err = row.Scan(&capturedCents, &refundedCents)
	return
}

// CreateCommissionRecordParams is written once per captured payment and
// never updated afterward (§3: immutable once written).
type CreateCommissionRecordParams struct {
	PaymentID    uuid.UUID
	RestaurantID uuid.UUID
	RateBps      int64
	AmountCents  int64
}

func (q *Queries) CreateCommissionRecord(ctx context.Context, arg CreateCommissionRecordParams) (CommissionRecord, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO commission_records (id, payment_id, restaurant_id, rate_bps, amount_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, payment_id, restaurant_id, rate_bps, amount_cents, created_at`,
		uuid.New(), arg.PaymentID, arg.RestaurantID, arg.RateBps, arg.AmountCents)
	var c CommissionRecord
	err := row.Scan(&c.ID, &c.PaymentID, &c.RestaurantID, &c.RateBps, &c.AmountCents, &c.CreatedAt)
	return c, err
}

// ListPendingIntents feeds the periodic sweeper (§5) that reconciles every
// still-open provider intent; the sweeper itself decides, per payment,
// whether the provider's own intent TTL has elapsed.
func (q *Queries) ListPendingIntents(ctx context.Context) ([]Payment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, restaurant_id, order_id, provider, provider_intent_ref, provider_payment_ref, amount_cents, status,
			commission_rate_bps, commission_amount_cents, refund_of_payment_id, idempotency_key, created_at, updated_at
		FROM payments WHERE status = 'pending'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.RestaurantID, &p.OrderID, &p.Provider, &p.ProviderIntentRef, &p.ProviderPaymentRef,
		&p.AmountCents, &p.Status, &p.CommissionRateBps, &p.CommissionAmountCents, &p.RefundOfPaymentID,
		&p.IdempotencyKey, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
