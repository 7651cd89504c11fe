package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// PutIdempotencyRecordParams is the single idempotency store named in §9:
// one table backs both per-restaurant client idempotency keys and
// per-provider webhook event IDs, distinguished by whether RestaurantID is
// set.
type PutIdempotencyRecordParams struct {
	RestaurantID       pgtype.UUID
	Key                string
	RequestFingerprint string
	ResponseBody       []byte
}

func (q *Queries) GetIdempotencyRecord(ctx context.Context, restaurantID uuid.UUID, key string) (IdempotencyRecord, error) {
	row := q.db.QueryRow(ctx, `
		SELECT restaurant_id, key, request_fingerprint, response_body, created_at, expires_at
		FROM idempotency_records WHERE restaurant_id = $1 AND key = $2 AND expires_at > now()`, restaurantID, key)
	var r IdempotencyRecord
	err := row.Scan(&r.RestaurantID, &r.Key, &r.RequestFingerprint, &r.ResponseBody, &r.CreatedAt, &r.ExpiresAt)
	return r, err
}

// PutIdempotencyRecord inserts a new key record with the standard 24-hour
// expiry (§4.4). It never overwrites an existing key: conflict resolution
// (replay vs IdempotencyConflict) is the caller's responsibility, based on
// comparing RequestFingerprint against what GetIdempotencyRecord returned.
func (q *Queries) PutIdempotencyRecord(ctx context.Context, arg PutIdempotencyRecordParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO idempotency_records (restaurant_id, key, request_fingerprint, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, $4, now(), now() + interval '24 hours')
		ON CONFLICT (restaurant_id, key) DO NOTHING`,
		arg.RestaurantID, arg.Key, arg.RequestFingerprint, arg.ResponseBody)
	return err
}

// Webhook idempotency keys are stored in the same table with
// RestaurantID left NULL and Key set to "provider:event_id" (§4.5, §9).

func (q *Queries) GetWebhookIdempotencyRecord(ctx context.Context, provider, eventID string) (IdempotencyRecord, error) {
	row := q.db.QueryRow(ctx, `
		SELECT restaurant_id, key, request_fingerprint, response_body, created_at, expires_at
		FROM idempotency_records WHERE restaurant_id IS NULL AND key = $1`, webhookKey(provider, eventID))
	var r IdempotencyRecord
	err := row.Scan(&r.RestaurantID, &r.Key, &r.RequestFingerprint, &r.ResponseBody, &r.CreatedAt, &r.ExpiresAt)
	return r, err
}

func (q *Queries) PutWebhookIdempotencyRecord(ctx context.Context, provider, eventID string, responseBody []byte) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO idempotency_records (restaurant_id, key, request_fingerprint, response_body, created_at, expires_at)
		VALUES (NULL, $1, $1, $2, now(), now() + interval '24 hours')
		ON CONFLICT (restaurant_id, key) DO NOTHING`,
		webhookKey(provider, eventID), responseBody)
	return err
}

func webhookKey(provider, eventID string) string {
	return provider + ":" + eventID
}
