package httpapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cypherarest/poscore/internal/orders"
	"github.com/cypherarest/poscore/internal/payments"
	"github.com/cypherarest/poscore/internal/tenant"
)

func TestClassify_KnownErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad request", ErrBadRequest, http.StatusBadRequest, "invalid_payload"},
		{"restaurant not found", ErrRestaurantNotFound, http.StatusNotFound, "restaurant_not_found"},
		{"order not found", orders.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
		{"invalid transition", orders.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{"double capture", payments.ErrDoubleCapture, http.StatusConflict, "double_capture"},
		{"fee mismatch", payments.ErrFeeMismatch, http.StatusBadRequest, "fee_mismatch"},
		{"context mismatch", tenant.ErrContextMismatch, http.StatusForbidden, "context_mismatch"},
		{"no context", tenant.ErrNoContext, http.StatusInternalServerError, "no_context"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code, _ := classify(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}

func TestClassify_WrappedErrorStillMatches(t *testing.T) {
	wrapped := errors.New("creating order: " + orders.ErrProductUnavailable.Error())
	status, code, _ := classify(wrapped)
	// a plain string-wrapped error (not %w) does not match errors.Is, so it
	// falls through to the default - this guards against accidentally
	// relying on substring matching instead of error identity.
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal", code)

	trueWrap := errorsWrap(orders.ErrProductUnavailable)
	status, code, _ = classify(trueWrap)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "product_unavailable", code)
}

func TestClassify_UnknownErrorDefaultsToInternal(t *testing.T) {
	status, code, _ := classify(errors.New("something unmapped"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal", code)
}

func errorsWrap(err error) error {
	return &wrappedErr{err: err}
}

type wrappedErr struct{ err error }

func (w *wrappedErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrappedErr) Unwrap() error { return w.err }
