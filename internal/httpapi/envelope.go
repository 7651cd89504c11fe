// Package httpapi wires the Gin HTTP surface (C7): the response envelope,
// route table, and the translation from every other package's typed errors
// into HTTP status codes.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cypherarest/poscore/internal/auth"
	"github.com/cypherarest/poscore/internal/idempotency"
	"github.com/cypherarest/poscore/internal/orders"
	"github.com/cypherarest/poscore/internal/payments"
	"github.com/cypherarest/poscore/internal/tenant"
)

// envelope is the uniform response shape every handler returns (§4.7):
// {success, data?, error?{code,message,details?}, meta?, timestamp}.
type envelope struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Error     *envelopeError `json:"error,omitempty"`
	Meta      *meta          `json:"meta,omitempty"`
	Timestamp string         `json:"timestamp"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type meta struct {
	Pagination *pagination `json:"pagination,omitempty"`
}

type pagination struct {
	Page       int32 `json:"page"`
	Limit      int32 `json:"limit"`
	TotalCount int64 `json:"total_count"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data, Timestamp: nowString()})
}

func okPaginated(c *gin.Context, data any, page, limit int32, total int64) {
	c.JSON(http.StatusOK, envelope{
		Success: true, Data: data, Timestamp: nowString(),
		Meta: &meta{Pagination: &pagination{Page: page, Limit: limit, TotalCount: total}},
	})
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// fail is the single error-to-envelope translation point referenced
// throughout the HTTP layer (§4.7, §7): it inspects every typed error the
// domain packages define and maps it to a status code and stable error
// code string.
func fail(c *gin.Context, err error) {
	status, code, message := classify(err)
	c.JSON(status, envelope{
		Success:   false,
		Error:     &envelopeError{Code: code, Message: message},
		Timestamp: nowString(),
	})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid_payload", "malformed request"
	case errors.Is(err, ErrRestaurantNotFound):
		return http.StatusNotFound, "restaurant_not_found", "restaurant not found"
	case errors.Is(err, errRoleInsufficient):
		return http.StatusForbidden, "role_insufficient", "role not permitted"
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", "order not found"
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "order status transition not allowed"
	case errors.Is(err, orders.ErrProductUnavailable):
		return http.StatusConflict, "product_unavailable", "one or more products are unavailable"
	case errors.Is(err, orders.ErrRestaurantClosed):
		return http.StatusConflict, "restaurant_closed", "restaurant is closed"
	case errors.Is(err, orders.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different request"
	case errors.Is(err, orders.ErrStaleOrderState):
		return http.StatusConflict, "stale_order_state", "order state changed since this request was built"
	case errors.Is(err, idempotency.ErrConflict):
		return http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different request"

	case errors.Is(err, payments.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "provider_unavailable", "payment provider unavailable"
	case errors.Is(err, payments.ErrFeeMismatch):
		return http.StatusBadRequest, "fee_mismatch", "client and server computed fees disagree"
	case errors.Is(err, payments.ErrDoubleCapture):
		return http.StatusConflict, "double_capture", "order already has a captured payment"
	case errors.Is(err, payments.ErrIntentExpired):
		return http.StatusConflict, "intent_expired", "payment intent expired"
	case errors.Is(err, payments.ErrSignatureInvalid):
		return http.StatusUnauthorized, "signature_invalid", "webhook signature invalid"
	case errors.Is(err, payments.ErrRefundExceedsCapture):
		return http.StatusConflict, "refund_exceeds_capture", "refund would exceed captured amount"
	case errors.Is(err, payments.ErrOrderNotConfirmed):
		return http.StatusConflict, "order_not_confirmed", "order must be confirmed before payment"

	case errors.Is(err, tenant.ErrContextMismatch):
		return http.StatusForbidden, "context_mismatch", "restaurant does not match authenticated context"
	case errors.Is(err, tenant.ErrNoContext):
		return http.StatusInternalServerError, "no_context", "no tenant context bound to request"

	case errors.Is(err, auth.ErrTokenMissing):
		return http.StatusUnauthorized, "token_missing", "authorization header required"
	case errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized, "token_invalid", "invalid token"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "token expired"
	case errors.Is(err, auth.ErrUserDisabled):
		return http.StatusUnauthorized, "user_disabled", "user account disabled"
	case errors.Is(err, auth.ErrIdentityProviderUnavailable):
		return http.StatusServiceUnavailable, "identity_provider_unavailable", "identity provider unavailable"

	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
