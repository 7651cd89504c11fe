package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/cypherarest/poscore/internal/config"
	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/logger"
)

// Verifier implements C1: validating bearer tokens against the identity
// provider and resolving the result to a local user, creating one on first
// login (§4.1).
type Verifier struct {
	provider IdentityProvider
	queries  db.Querier
	cfg      *config.Config
}

func NewVerifier(provider IdentityProvider, queries db.Querier, cfg *config.Config) *Verifier {
	return &Verifier{provider: provider, queries: queries, cfg: cfg}
}

// Verified is the outcome of a successful Verify call.
type Verified struct {
	User db.User
}

// Verify runs the full C1 contract: missing-token check, provider
// introspection, and local user lookup-or-create.
func (v *Verifier) Verify(ctx context.Context, bearerToken string) (Verified, error) {
	token := strings.TrimSpace(bearerToken)
	if token == "" {
		return Verified{}, ErrTokenMissing
	}

	result, err := v.provider.Introspect(ctx, token)
	if err != nil {
		return Verified{}, err
	}
	if !result.Valid {
		return Verified{}, ErrTokenInvalid
	}
	if !result.ExpiresAt.IsZero() && time.Now().After(result.ExpiresAt) {
		return Verified{}, ErrTokenExpired
	}

	user, err := v.queries.GetUserByExternalID(ctx, result.ExternalUserID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		user, err = v.createUser(ctx, result)
		if err != nil {
			return Verified{}, err
		}
	case err != nil:
		return Verified{}, err
	}

	if user.Disabled {
		return Verified{}, ErrUserDisabled
	}

	if err := v.queries.TouchUserLastLogin(ctx, user.ID); err != nil {
		logger.Warn("failed to update last_login_at", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	return Verified{User: user}, nil
}

// createUser assigns role platform_owner iff the email matches the
// configured allowlist, else restaurant_owner pending onboarding (§4.1).
func (v *Verifier) createUser(ctx context.Context, result IntrospectionResult) (db.User, error) {
	role := db.RoleRestaurantOwner
	if v.cfg.IsPlatformOwnerEmail(result.Email) {
		role = db.RolePlatformOwner
	}

	user, err := v.queries.CreateUser(ctx, db.CreateUserParams{
		ExternalUserID: result.ExternalUserID,
		Email:          result.Email,
		EmailVerified:  result.EmailVerified,
		Role:           role,
		RestaurantID:   pgtype.UUID{},
	})
	if err != nil {
		return db.User{}, err
	}

	logger.Info("created user on first login",
		zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}
