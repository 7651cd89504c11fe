package idempotency

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypherarest/poscore/internal/db"
)

// fakeQuerier embeds the (nil) Querier interface so it satisfies db.Querier
// without implementing every one of its methods; only the idempotency
// methods under test are overridden, matching the hand-written-fake style
// the teacher's libs/go/mocks package uses for Querier-shaped interfaces.
type fakeQuerier struct {
	db.Querier

	records     map[string]db.IdempotencyRecord
	webhookSeen map[string]bool
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		records:     make(map[string]db.IdempotencyRecord),
		webhookSeen: make(map[string]bool),
	}
}

func (f *fakeQuerier) GetIdempotencyRecord(ctx context.Context, restaurantID uuid.UUID, key string) (db.IdempotencyRecord, error) {
	rec, ok := f.records[restaurantID.String()+":"+key]
	if !ok {
		return db.IdempotencyRecord{}, pgx.ErrNoRows
	}
	return rec, nil
}

func (f *fakeQuerier) PutIdempotencyRecord(ctx context.Context, arg db.PutIdempotencyRecordParams) error {
	f.records[uuid.UUID(arg.RestaurantID.Bytes).String()+":"+arg.Key] = db.IdempotencyRecord{
		RequestFingerprint: arg.RequestFingerprint,
		ResponseBody:       arg.ResponseBody,
	}
	return nil
}

func (f *fakeQuerier) GetWebhookIdempotencyRecord(ctx context.Context, provider, eventID string) (db.IdempotencyRecord, error) {
	if f.webhookSeen[provider+":"+eventID] {
		return db.IdempotencyRecord{}, nil
	}
	return db.IdempotencyRecord{}, pgx.ErrNoRows
}

func (f *fakeQuerier) PutWebhookIdempotencyRecord(ctx context.Context, provider, eventID string, responseBody []byte) error {
	f.webhookSeen[provider+":"+eventID] = true
	return nil
}

func TestStore_Check_Fresh(t *testing.T) {
	q := newFakeQuerier()
	s := New(q)

	outcome, _, err := s.Check(context.Background(), uuid.New(), "key-1", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, Fresh, outcome)
}

func TestStore_Check_ReplayReturnsStoredResponse(t *testing.T) {
	q := newFakeQuerier()
	s := New(q)
	restaurantID := uuid.New()

	require.NoError(t, s.Put(context.Background(), restaurantID, "key-1", "fp-1", []byte(`{"order_id":"abc"}`)))

	outcome, body, err := s.Check(context.Background(), restaurantID, "key-1", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, Replay, outcome)
	assert.Equal(t, `{"order_id":"abc"}`, string(body))
}

func TestStore_Check_ConflictOnFingerprintMismatch(t *testing.T) {
	q := newFakeQuerier()
	s := New(q)
	restaurantID := uuid.New()

	require.NoError(t, s.Put(context.Background(), restaurantID, "key-1", "fp-1", []byte(`{}`)))

	_, _, err := s.Check(context.Background(), restaurantID, "key-1", "fp-DIFFERENT")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStore_CheckWebhook_FreshThenSeen(t *testing.T) {
	q := newFakeQuerier()
	s := New(q)

	seen, err := s.CheckWebhook(context.Background(), "stripe", "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.PutWebhook(context.Background(), "stripe", "evt_1", nil))

	seen, err = s.CheckWebhook(context.Background(), "stripe", "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}
