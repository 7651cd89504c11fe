package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/cypherarest/poscore/internal/db"
)

func unmarshalStripeObject(raw json.RawMessage, dest any) error {
	return json.Unmarshal(raw, dest)
}

// StripeProvider is the card-fallback provider (§4.5), adapted from the
// teacher's libs/go/client/payment_sync/stripe/webhook.go signature
// verification pattern.
type StripeProvider struct {
	secretKey     string
	webhookSecret string
	feeBps        int64
	enabled       bool
}

func NewStripeProvider(secretKey, webhookSecret string, feeBps int64, enabled bool) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{secretKey: secretKey, webhookSecret: webhookSecret, feeBps: feeBps, enabled: enabled}
}

func (p *StripeProvider) Name() db.Provider        { return db.ProviderStripe }
func (p *StripeProvider) FeeBps() int64            { return p.feeBps }
func (p *StripeProvider) Enabled() bool            { return p.enabled }
func (p *StripeProvider) IntentTTL() time.Duration { return cardProviderIntentTTL }

func (p *StripeProvider) CreateIntent(ctx context.Context, req CreateIntentRequest) (IntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
	}
	params.AddMetadata("order_ref", req.OrderRef)

	intent, err := paymentintent.New(params)
	if err != nil {
		return IntentResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return IntentResult{
		IntentRef:     intent.ID,
		ClientPayload: intent.ClientSecret,
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}, nil
}

func (p *StripeProvider) Confirm(ctx context.Context, intentRef string) (IntentStatus, error) {
	intent, err := paymentintent.Get(intentRef, nil)
	if err != nil {
		return IntentFailed, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return mapStripeIntentStatus(intent.Status), nil
}

func (p *StripeProvider) Refund(ctx context.Context, paymentRef string, amountCents int64) (IntentStatus, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(amountCents),
	}
	if _, err := refund.New(params); err != nil {
		return IntentFailed, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return IntentCaptured, nil
}

// VerifyWebhook verifies the Stripe-Signature header via the SDK's
// webhook.ConstructEvent, exactly as the teacher's HandleWebhook does, then
// maps the typed event to our canonical WebhookEvent.
func (p *StripeProvider) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(body, headers.Get("Stripe-Signature"), p.webhookSecret)
	if err != nil {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	if time.Since(time.Unix(event.Created, 0)).Abs() > 5*time.Minute {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	var intent stripe.PaymentIntent
	status := IntentPending
	switch event.Type {
	case "payment_intent.succeeded":
		status = IntentCaptured
		_ = unmarshalStripeObject(event.Data.Raw, &intent)
	case "payment_intent.payment_failed":
		status = IntentFailed
		_ = unmarshalStripeObject(event.Data.Raw, &intent)
	default:
		_ = unmarshalStripeObject(event.Data.Raw, &intent)
	}

	return WebhookEvent{
		Provider:        db.ProviderStripe,
		ProviderEventID: event.ID,
		IntentRef:       intent.ID,
		Status:          status,
		OccurredAt:      time.Unix(event.Created, 0),
	}, nil
}

func mapStripeIntentStatus(status stripe.PaymentIntentStatus) IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentCaptured
	case stripe.PaymentIntentStatusCanceled:
		return IntentFailed
	default:
		return IntentPending
	}
}
