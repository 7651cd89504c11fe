// Package payments implements the Payment Orchestrator (C5): provider
// selection, fee computation, idempotent capture, refunds, and webhook
// authenticity verification.
package payments

import "errors"

var (
	ErrProviderUnavailable  = errors.New("provider_unavailable")
	ErrFeeMismatch          = errors.New("fee_mismatch")
	ErrDoubleCapture        = errors.New("double_capture")
	ErrIntentExpired        = errors.New("intent_expired")
	ErrSignatureInvalid     = errors.New("signature_invalid")
	ErrRefundExceedsCapture = errors.New("refund_exceeds_capture")
	ErrOrderNotConfirmed    = errors.New("order not confirmed")
)
