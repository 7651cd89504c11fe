package payments

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypherarest/poscore/internal/db"
)

type fakeProvider struct {
	name    db.Provider
	feeBps  int64
	enabled bool
}

func (f fakeProvider) Name() db.Provider        { return f.name }
func (f fakeProvider) FeeBps() int64            { return f.feeBps }
func (f fakeProvider) Enabled() bool            { return f.enabled }
func (f fakeProvider) IntentTTL() time.Duration { return 15 * time.Minute }
func (f fakeProvider) CreateIntent(ctx context.Context, req CreateIntentRequest) (IntentResult, error) {
	return IntentResult{IntentRef: "intent-" + string(f.name), ExpiresAt: time.Now().Add(time.Minute)}, nil
}
func (f fakeProvider) Confirm(ctx context.Context, intentRef string) (IntentStatus, error) {
	return IntentPending, nil
}
func (f fakeProvider) Refund(ctx context.Context, paymentRef string, amountCents int64) (IntentStatus, error) {
	return IntentCaptured, nil
}
func (f fakeProvider) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (WebhookEvent, error) {
	return WebhookEvent{}, nil
}

func newTestService(providers ...Provider) *Service {
	return New(nil, nil, nil, 0, providers...)
}

func TestSelectProvider_ExplicitMethodWins(t *testing.T) {
	s := newTestService(
		fakeProvider{name: db.ProviderStripe, feeBps: 175, enabled: true},
		fakeProvider{name: db.ProviderQR, feeBps: 0, enabled: true},
	)

	p, err := s.selectProvider(string(db.ProviderStripe))
	require.NoError(t, err)
	assert.Equal(t, db.ProviderStripe, p.Name())
}

func TestSelectProvider_ExplicitButDisabledRejected(t *testing.T) {
	s := newTestService(fakeProvider{name: db.ProviderStripe, feeBps: 175, enabled: false})

	_, err := s.selectProvider(string(db.ProviderStripe))
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestSelectProvider_NoHintPicksLowestFeeAmongEnabled(t *testing.T) {
	s := newTestService(
		fakeProvider{name: db.ProviderStripe, feeBps: 175, enabled: true},
		fakeProvider{name: db.ProviderSumUp, feeBps: 169, enabled: true},
		fakeProvider{name: db.ProviderQR, feeBps: 0, enabled: false},
	)

	p, err := s.selectProvider("")
	require.NoError(t, err)
	assert.Equal(t, db.ProviderSumUp, p.Name())
}

func TestSelectProvider_NoneEnabled(t *testing.T) {
	s := newTestService(fakeProvider{name: db.ProviderStripe, feeBps: 175, enabled: false})

	_, err := s.selectProvider("")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestAbs64(t *testing.T) {
	assert.Equal(t, int64(5), abs64(5))
	assert.Equal(t, int64(5), abs64(-5))
	assert.Equal(t, int64(0), abs64(0))
}

func TestFeeTolerance_WithinToleranceAccepted(t *testing.T) {
	computed := int64(350)
	client := int64(349) // off by feeToleranceCents
	assert.LessOrEqual(t, abs64(computed-client), int64(feeToleranceCents))
}

func TestFeeTolerance_BeyondToleranceRejected(t *testing.T) {
	computed := int64(350)
	client := int64(347)
	assert.Greater(t, abs64(computed-client), int64(feeToleranceCents))
}
