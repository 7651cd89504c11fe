package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateUserParams are the fields needed to persist a newly verified user
// (§4.1: created on first successful token verification).
type CreateUserParams struct {
	ExternalUserID string
	Email          string
	EmailVerified  bool
	Role           Role
	RestaurantID   pgtype.UUID
}

func (q *Queries) GetUserByExternalID(ctx context.Context, externalUserID string) (User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, external_user_id, email, email_verified, role, restaurant_id, disabled, last_login_at, created_at
		FROM users WHERE external_user_id = $1`, externalUserID)
	var u User
	err := row.Scan(&u.ID, &u.ExternalUserID, &u.Email, &u.EmailVerified, &u.Role, &u.RestaurantID, &u.Disabled, &u.LastLoginAt, &u.CreatedAt)
	return u, err
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (id, external_user_id, email, email_verified, role, restaurant_id, disabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, now())
		RETURNING id, external_user_id, email, email_verified, role, restaurant_id, disabled, last_login_at, created_at`,
		uuid.New(), arg.ExternalUserID, arg.Email, arg.EmailVerified, arg.Role, arg.RestaurantID)
	var u User
	err := row.Scan(&u.ID, &u.ExternalUserID, &u.Email, &u.EmailVerified, &u.Role, &u.RestaurantID, &u.Disabled, &u.LastLoginAt, &u.CreatedAt)
	return u, err
}

func (q *Queries) TouchUserLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, userID)
	return err
}

// AssignUserRestaurant binds a pending restaurant_owner to the restaurant
// they just created via POST /restaurants (§8 scenario 1).
func (q *Queries) AssignUserRestaurant(ctx context.Context, userID, restaurantID uuid.UUID, role Role) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET restaurant_id = $2, role = $3 WHERE id = $1`, userID, restaurantID, role)
	return err
}
