package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cypherarest/poscore/internal/tenant"
)

// RequireAuth verifies the request's bearer token via v and binds the
// resulting tenant.Context onto the request's context.Context, matching the
// teacher's EnsureValidAPIKeyOrToken shape in libs/go/client/auth/middleware.go
// (header parsing, gin.Context propagation) generalized to this system's C1
// contract instead of Web3Auth/API-key dual auth.
func RequireAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		verified, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			writeAuthError(c, err)
			return
		}

		tc := tenant.Context{
			UserID:          verified.User.ID,
			Email:           verified.User.Email,
			Role:            string(verified.User.Role),
			IsPlatformOwner: string(verified.User.Role) == "platform_owner",
		}
		if verified.User.RestaurantID.Valid {
			tc.RestaurantID = verified.User.RestaurantID.Bytes
			tc.HasRestaurant = true
		}

		ctx := tenant.WithContext(c.Request.Context(), tc)
		c.Request = c.Request.WithContext(ctx)
		c.Set("tenantContext", tc)
		c.Next()
	}
}

// RequireRoles restricts a route group to the given roles, matching the
// teacher's RequireRoles helper.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		tc, ok := c.Get("tenantContext")
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": "internal", "message": "no tenant context"}})
			return
		}
		ctx := tc.(tenant.Context)
		if _, ok := allowed[ctx.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": gin.H{"code": "role_insufficient", "message": "role not permitted"}})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}
	return ""
}

func writeAuthError(c *gin.Context, err error) {
	switch err {
	case ErrTokenMissing:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{"code": "token_missing", "message": "authorization header required"}})
	case ErrTokenExpired:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{"code": "token_expired", "message": "token expired"}})
	case ErrUserDisabled:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{"code": "user_disabled", "message": "user account disabled"}})
	case ErrIdentityProviderUnavailable:
		c.Header("Retry-After", "5")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": gin.H{"code": "identity_provider_unavailable", "message": "identity provider unavailable"}})
	default:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{"code": "token_invalid", "message": "invalid token"}})
	}
}
