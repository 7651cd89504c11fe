// Package orders implements the Order Engine (C4): the order lifecycle
// state machine, line mutation, idempotency, and the concurrency control
// required around it.
package orders

import "errors"

var (
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrProductUnavailable = errors.New("product_unavailable")
	ErrRestaurantClosed   = errors.New("restaurant_closed")
	ErrIdempotencyConflict = errors.New("idempotency_conflict")
	ErrStaleOrderState    = errors.New("stale_order_state")
	ErrOrderNotFound      = errors.New("order_not_found")
)
