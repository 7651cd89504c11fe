package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// IntrospectionResult is the tuple the identity provider returns for a
// bearer token (§4.1, §6): `{valid, external_user_id, email, email_verified, exp}`.
type IntrospectionResult struct {
	Valid          bool
	ExternalUserID string
	Email          string
	EmailVerified  bool
	ExpiresAt      time.Time
}

// IdentityProvider is the external collaborator contract of §6: an
// OIDC-like introspection endpoint the core calls with the raw bearer
// token, which validates signature, expiry, and audience on our behalf.
type IdentityProvider interface {
	Introspect(ctx context.Context, token string) (IntrospectionResult, error)
}

// HTTPIdentityProvider calls a remote introspection endpoint over HTTP,
// matching the shape of the teacher's JWKS HTTP client in
// libs/go/client/auth/middleware.go but replacing local JWKS verification
// with a server-side introspection round trip per this system's §6 contract.
type HTTPIdentityProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPIdentityProvider constructs a provider client with a bounded
// per-call timeout, matching the teacher's pattern of dedicated HTTP clients
// per external dependency rather than sharing http.DefaultClient.
func NewHTTPIdentityProvider(baseURL string, timeout time.Duration) *HTTPIdentityProvider {
	return &HTTPIdentityProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

type introspectionWireResponse struct {
	Valid          bool   `json:"valid"`
	ExternalUserID string `json:"external_user_id"`
	Email          string `json:"email"`
	EmailVerified  bool   `json:"email_verified"`
	Exp            int64  `json:"exp"`
}

func (p *HTTPIdentityProvider) Introspect(ctx context.Context, token string) (IntrospectionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/introspect", strings.NewReader(`{"token":"`+token+`"}`))
	if err != nil {
		return IntrospectionResult{}, fmt.Errorf("build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return IntrospectionResult{}, ErrIdentityProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return IntrospectionResult{}, ErrIdentityProviderUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return IntrospectionResult{}, ErrTokenInvalid
	}

	var wire introspectionWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return IntrospectionResult{}, fmt.Errorf("decode introspection response: %w", err)
	}
	if !wire.Valid {
		return IntrospectionResult{}, ErrTokenInvalid
	}

	return IntrospectionResult{
		Valid:          wire.Valid,
		ExternalUserID: wire.ExternalUserID,
		Email:          wire.Email,
		EmailVerified:  wire.EmailVerified,
		ExpiresAt:      time.Unix(wire.Exp, 0),
	}, nil
}

// introspectionCacheEntry mirrors the teacher's JWKS refresh-guard pattern
// (a bounded-lifetime cached value behind a mutex) but keyed per token hash
// instead of per key set.
type introspectionCacheEntry struct {
	result    IntrospectionResult
	cachedAt  time.Time
}

// CachingIdentityProvider absorbs bursts of repeated verification calls for
// the same token by caching introspection results for up to 60 seconds
// (§4.1), bypassing the cache entirely when the token's remaining lifetime
// is under 10 seconds so a near-expiry token is never served stale.
type CachingIdentityProvider struct {
	inner IdentityProvider
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]introspectionCacheEntry
}

const (
	introspectionCacheTTL      = 60 * time.Second
	introspectionBypassWindow = 10 * time.Second
)

func NewCachingIdentityProvider(inner IdentityProvider) *CachingIdentityProvider {
	return &CachingIdentityProvider{
		inner: inner,
		ttl:   introspectionCacheTTL,
		cache: make(map[string]introspectionCacheEntry),
	}
}

func (c *CachingIdentityProvider) Introspect(ctx context.Context, token string) (IntrospectionResult, error) {
	key := tokenCacheKey(token)

	c.mu.Lock()
	entry, ok := c.cache[key]
	c.mu.Unlock()

	if ok && time.Since(entry.cachedAt) < c.ttl && time.Until(entry.result.ExpiresAt) >= introspectionBypassWindow {
		return entry.result, nil
	}

	result, err := c.inner.Introspect(ctx, token)
	if err != nil {
		return IntrospectionResult{}, err
	}

	c.mu.Lock()
	c.cache[key] = introspectionCacheEntry{result: result, cachedAt: time.Now()}
	c.mu.Unlock()

	return result, nil
}

func tokenCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
