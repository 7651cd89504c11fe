package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cypherarest/poscore/internal/db"
)

// SumUpProvider is the primary card provider (§4.5). SumUp has no Go SDK in
// the example pack, so this client speaks its REST API directly over
// net/http, the same way the teacher's libs/go/client packages wrap other
// REST-only collaborators.
type SumUpProvider struct {
	apiKey        string
	webhookSecret string
	feeBps        int64
	enabled       bool
	client        *http.Client
	baseURL       string
}

func NewSumUpProvider(apiKey, webhookSecret string, feeBps int64, enabled bool) *SumUpProvider {
	return &SumUpProvider{
		apiKey: apiKey, webhookSecret: webhookSecret, feeBps: feeBps, enabled: enabled,
		client: &http.Client{Timeout: 15 * time.Second}, baseURL: "https://api.sumup.com/v0.1",
	}
}

func (p *SumUpProvider) Name() db.Provider        { return db.ProviderSumUp }
func (p *SumUpProvider) FeeBps() int64            { return p.feeBps }
func (p *SumUpProvider) Enabled() bool            { return p.enabled }
func (p *SumUpProvider) IntentTTL() time.Duration { return cardProviderIntentTTL }

type sumUpCheckoutRequest struct {
	CheckoutReference string `json:"checkout_reference"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
}

type sumUpCheckoutResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (p *SumUpProvider) CreateIntent(ctx context.Context, req CreateIntentRequest) (IntentResult, error) {
	body, _ := json.Marshal(sumUpCheckoutRequest{
		CheckoutReference: req.OrderRef + ":" + uuid.NewString(),
		Amount:            req.AmountCents,
		Currency:          req.Currency,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/checkouts", bytes.NewReader(body))
	if err != nil {
		return IntentResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return IntentResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return IntentResult{}, ErrProviderUnavailable
	}

	var checkout sumUpCheckoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return IntentResult{}, fmt.Errorf("decode sumup checkout: %w", err)
	}

	return IntentResult{
		IntentRef:     checkout.ID,
		ClientPayload: checkout.ID,
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}, nil
}

func (p *SumUpProvider) Confirm(ctx context.Context, intentRef string) (IntentStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/checkouts/"+intentRef, nil)
	if err != nil {
		return IntentFailed, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return IntentFailed, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var checkout sumUpCheckoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return IntentFailed, err
	}
	return mapSumUpStatus(checkout.Status), nil
}

func (p *SumUpProvider) Refund(ctx context.Context, paymentRef string, amountCents int64) (IntentStatus, error) {
	body, _ := json.Marshal(map[string]int64{"amount": amountCents})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/me/refund/"+paymentRef, bytes.NewReader(body))
	if err != nil {
		return IntentFailed, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return IntentFailed, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return IntentFailed, ErrProviderUnavailable
	}
	return IntentCaptured, nil
}

type sumUpWebhookPayload struct {
	EventID   string `json:"id"`
	CheckoutID string `json:"checkout_id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

func (p *SumUpProvider) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (WebhookEvent, error) {
	if !validHMAC(p.webhookSecret, body, headers.Get("X-Sumup-Signature")) {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	var payload sumUpWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	occurredAt := time.Unix(payload.Timestamp, 0)
	if time.Since(occurredAt).Abs() > 5*time.Minute {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	return WebhookEvent{
		Provider:        db.ProviderSumUp,
		ProviderEventID: payload.EventID,
		IntentRef:       payload.CheckoutID,
		Status:          mapSumUpStatus(payload.Status),
		OccurredAt:      occurredAt,
	}, nil
}

func mapSumUpStatus(status string) IntentStatus {
	switch status {
	case "PAID":
		return IntentCaptured
	case "FAILED":
		return IntentFailed
	default:
		return IntentPending
	}
}
