// Package idempotency implements the single shared idempotency-key store
// named in §9: one store backs both order-mutation client keys and payment
// webhook event IDs, with explicit replay-vs-conflict semantics instead of
// splitting storage across DB and cache as the source does.
package idempotency

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cypherarest/poscore/internal/db"
)

// ErrConflict is returned when a replayed key arrives with a different
// request fingerprint (§4.4: IdempotencyConflict).
var ErrConflict = errors.New("idempotency: fingerprint mismatch for existing key")

// Outcome of checking a key before executing a mutating operation.
type Outcome int

const (
	// Fresh means no record exists yet; the caller should proceed and then
	// call Store.Put with the result.
	Fresh Outcome = iota
	// Replay means an identical request was already processed; the caller
	// should return the stored response verbatim without re-executing.
	Replay
)

// Store wraps the shared idempotency_records table.
type Store struct {
	queries db.Querier
}

func New(queries db.Querier) *Store {
	return &Store{queries: queries}
}

// Check looks up (restaurantID, key) and compares fingerprint. It returns
// Fresh if no record exists, Replay with the stored response if the
// fingerprint matches, or ErrConflict if it does not (§4.4).
func (s *Store) Check(ctx context.Context, restaurantID uuid.UUID, key, fingerprint string) (Outcome, []byte, error) {
	record, err := s.queries.GetIdempotencyRecord(ctx, restaurantID, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return Fresh, nil, nil
	}
	if err != nil {
		return Fresh, nil, err
	}
	if record.RequestFingerprint != fingerprint {
		return Fresh, nil, ErrConflict
	}
	return Replay, record.ResponseBody, nil
}

// Put persists the response for (restaurantID, key) so a later replay with
// the same fingerprint can short-circuit. Keys expire after 24 hours.
func (s *Store) Put(ctx context.Context, restaurantID uuid.UUID, key, fingerprint string, response []byte) error {
	return s.queries.PutIdempotencyRecord(ctx, db.PutIdempotencyRecordParams{
		RestaurantID:       pgtype.UUID{Bytes: restaurantID, Valid: true},
		Key:                key,
		RequestFingerprint: fingerprint,
		ResponseBody:       response,
	})
}

// CheckWebhook reports whether (provider, eventID) has already been
// processed (§4.5: "Webhook processing is keyed by (provider,
// provider_event_id); duplicate events are no-ops").
func (s *Store) CheckWebhook(ctx context.Context, provider, eventID string) (seen bool, err error) {
	_, err = s.queries.GetWebhookIdempotencyRecord(ctx, provider, eventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PutWebhook records that (provider, eventID) has been processed.
func (s *Store) PutWebhook(ctx context.Context, provider, eventID string, response []byte) error {
	return s.queries.PutWebhookIdempotencyRecord(ctx, provider, eventID, response)
}
