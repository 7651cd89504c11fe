package auth

import "errors"

// Typed failures for the Identity Verifier (C1), surfaced verbatim as error
// codes by the HTTP layer (§7).
var (
	ErrTokenMissing              = errors.New("token_missing")
	ErrTokenInvalid              = errors.New("token_invalid")
	ErrTokenExpired              = errors.New("token_expired")
	ErrIdentityProviderUnavailable = errors.New("identity_provider_unavailable")
	ErrUserDisabled              = errors.New("user_disabled")
)
