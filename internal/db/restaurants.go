package db

import (
	"context"

	"github.com/google/uuid"
)

// CreateRestaurantParams are the fields needed to onboard a new restaurant
// (§8 scenario 1: the owning user's restaurant_id is set in the same flow).
type CreateRestaurantParams struct {
	PlatformID       uuid.UUID
	Name             string
	SubscriptionTier SubscriptionTier
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO restaurants (id, platform_id, name, subscription_tier, is_open, catalog_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, 0, now(), now())
		RETURNING id, platform_id, name, subscription_tier, is_open, catalog_version, created_at, updated_at`,
		uuid.New(), arg.PlatformID, arg.Name, arg.SubscriptionTier)
	var r Restaurant
	err := row.Scan(&r.ID, &r.PlatformID, &r.Name, &r.SubscriptionTier, &r.IsOpen, &r.CatalogVersion, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, platform_id, name, subscription_tier, is_open, catalog_version, created_at, updated_at
		FROM restaurants WHERE id = $1`, id)
	var r Restaurant
	err := row.Scan(&r.ID, &r.PlatformID, &r.Name, &r.SubscriptionTier, &r.IsOpen, &r.CatalogVersion, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (q *Queries) SetRestaurantOpen(ctx context.Context, id uuid.UUID, isOpen bool) error {
	_, err := q.db.Exec(ctx, `UPDATE restaurants SET is_open = $2, updated_at = now() WHERE id = $1`, id, isOpen)
	return err
}

// BumpCatalogVersion atomically increments a restaurant's catalog_version,
// the invalidation signal consumed by the Menu Read Cache (§4.3). Callers
// must run this in the same transaction as the catalog mutation it guards.
func (q *Queries) BumpCatalogVersion(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE restaurants SET catalog_version = catalog_version + 1, updated_at = now()
		WHERE id = $1 RETURNING catalog_version`, restaurantID)
	var v int64
	err := row.Scan(&v)
	return v, err
}
