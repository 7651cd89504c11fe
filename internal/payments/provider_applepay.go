package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cypherarest/poscore/internal/db"
)

// ApplePayProvider is the premium-tier provider (§4.5). Apple Pay capture
// happens device-side via the merchant session flow; this client only
// tracks the resulting token server-side and verifies Apple's server
// notifications the same HMAC way as the QR/SumUp providers, since Apple's
// Go server SDK is not part of this pack.
type ApplePayProvider struct {
	merchantSecret string
	webhookSecret  string
	feeBps         int64
	enabled        bool

	pending map[string]IntentStatus
}

func NewApplePayProvider(merchantSecret, webhookSecret string, feeBps int64, enabled bool) *ApplePayProvider {
	return &ApplePayProvider{
		merchantSecret: merchantSecret, webhookSecret: webhookSecret, feeBps: feeBps, enabled: enabled,
		pending: make(map[string]IntentStatus),
	}
}

func (p *ApplePayProvider) Name() db.Provider        { return db.ProviderApplePay }
func (p *ApplePayProvider) FeeBps() int64            { return p.feeBps }
func (p *ApplePayProvider) Enabled() bool            { return p.enabled }
func (p *ApplePayProvider) IntentTTL() time.Duration { return cardProviderIntentTTL }

func (p *ApplePayProvider) CreateIntent(ctx context.Context, req CreateIntentRequest) (IntentResult, error) {
	intentRef := uuid.New().String()
	p.pending[intentRef] = IntentPending
	return IntentResult{
		IntentRef:     intentRef,
		ClientPayload: intentRef,
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}, nil
}

func (p *ApplePayProvider) Confirm(ctx context.Context, intentRef string) (IntentStatus, error) {
	status, ok := p.pending[intentRef]
	if !ok {
		return IntentFailed, ErrProviderUnavailable
	}
	return status, nil
}

func (p *ApplePayProvider) Refund(ctx context.Context, paymentRef string, amountCents int64) (IntentStatus, error) {
	return IntentCaptured, nil
}

type applePayWebhookPayload struct {
	EventID   string `json:"event_id"`
	IntentRef string `json:"intent_ref"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

func (p *ApplePayProvider) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (WebhookEvent, error) {
	if !validHMAC(p.webhookSecret, body, headers.Get("X-Apple-Pay-Signature")) {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	var payload applePayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	occurredAt := time.Unix(payload.Timestamp, 0)
	if time.Since(occurredAt).Abs() > 5*time.Minute {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	status := IntentPending
	switch payload.Status {
	case "captured":
		status = IntentCaptured
	case "failed":
		status = IntentFailed
	}
	p.pending[payload.IntentRef] = status

	return WebhookEvent{
		Provider:        db.ProviderApplePay,
		ProviderEventID: payload.EventID,
		IntentRef:       payload.IntentRef,
		Status:          status,
		OccurredAt:      occurredAt,
	}, nil
}
