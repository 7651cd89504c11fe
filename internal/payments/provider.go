package payments

import (
	"context"
	"net/http"
	"time"

	"github.com/cypherarest/poscore/internal/db"
)

// cardProviderIntentTTL is the intent lifetime shared by the card-rail
// providers (Stripe, SumUp, Apple Pay), matching each provider's own
// CreateIntent expiry (§4.5).
const cardProviderIntentTTL = 15 * time.Minute

// IntentStatus is the provider-reported state of a capture attempt.
type IntentStatus string

const (
	IntentCaptured IntentStatus = "captured"
	IntentPending  IntentStatus = "pending"
	IntentFailed   IntentStatus = "failed"
)

// CreateIntentRequest is the input to Provider.CreateIntent.
type CreateIntentRequest struct {
	AmountCents int64
	Currency    string
	OrderRef    string
	MethodHint  string
}

// IntentResult is the uniform provider response to intent creation (§6).
type IntentResult struct {
	IntentRef     string
	ClientPayload string
	ExpiresAt     time.Time
}

// WebhookEvent is the canonical shape every provider's webhook maps to
// before the orchestrator applies it, mirroring the teacher's
// libs/go/client/payment_sync/stripe/webhook.go WebhookEvent shape.
type WebhookEvent struct {
	Provider        db.Provider
	ProviderEventID string
	IntentRef       string
	Status          IntentStatus
	OccurredAt      time.Time
}

// Provider is the uniform capability interface consumed by the
// orchestrator (§4.5, §6): create_intent, confirm, refund, verify_webhook.
type Provider interface {
	Name() db.Provider
	FeeBps() (providerFeeBps int64)
	CreateIntent(ctx context.Context, req CreateIntentRequest) (IntentResult, error)
	Confirm(ctx context.Context, intentRef string) (IntentStatus, error)
	Refund(ctx context.Context, paymentRef string, amountCents int64) (IntentStatus, error)
	VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (WebhookEvent, error)
	Enabled() bool
	// IntentTTL reports how long this provider's intents stay alive before
	// they must be treated as expired rather than polled further (§4.5: the
	// sweeper "polls pending intents every 3s up to the intent's TTL").
	IntentTTL() time.Duration
}
