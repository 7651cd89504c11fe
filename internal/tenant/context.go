// Package tenant carries the per-request security context (C2) through the
// request's goroutine call graph and binds it to transaction-local Postgres
// session variables consumed by row-level security policies.
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// contextKey is unexported so no other package can collide with it when
// stashing values on a context.Context, matching the teacher's
// libs/go/middleware/correlation.go pattern.
type contextKey string

const ctxKey contextKey = "tenantContext"

// Context is the (user, restaurant, role) triple bound to every
// authenticated request (§4.2). It is carried as an immutable value inside
// context.Context, never in goroutine-local or thread-local storage, so it
// survives cooperative scheduling and request-scoped fan-out safely.
type Context struct {
	UserID          uuid.UUID
	Email           string
	Role            string
	RestaurantID    uuid.UUID
	HasRestaurant   bool
	IsPlatformOwner bool
}

// ErrNoContext is returned by FromContext when no Context has been bound —
// a 500-worthy internal bug per §4.2 (NoContext).
var ErrNoContext = errors.New("tenant: no context bound to request")

// WithContext returns a derived context.Context carrying tc.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey, tc)
}

// FromContext extracts the bound Context, or ErrNoContext if none is set.
func FromContext(ctx context.Context) (Context, error) {
	tc, ok := ctx.Value(ctxKey).(Context)
	if !ok {
		return Context{}, ErrNoContext
	}
	return tc, nil
}

// RequireRestaurant validates that the context either targets exactly
// restaurantID or belongs to a platform owner (§4.2: "Platform-owner reads
// see all rows" but "must still declare which restaurant a mutation
// targets" — callers pass the explicit target separately in that case).
func (tc Context) RequireRestaurant(restaurantID uuid.UUID) error {
	if tc.IsPlatformOwner {
		return nil
	}
	if !tc.HasRestaurant || tc.RestaurantID != restaurantID {
		return ErrContextMismatch
	}
	return nil
}

// ErrContextMismatch signals a URL-level restaurant_id that does not match
// the bound context (§4.2: ContextMismatch -> 403).
var ErrContextMismatch = errors.New("tenant: context mismatch")
