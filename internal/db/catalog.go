package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func (q *Queries) ListCategories(ctx context.Context, restaurantID uuid.UUID) ([]Category, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, restaurant_id, name, sort_order, created_at
		FROM categories WHERE restaurant_id = $1 ORDER BY sort_order, name`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListProducts returns active products for a restaurant's menu. The
// `(restaurant_id, is_active)` index named in §6 backs this query.
func (q *Queries) ListProducts(ctx context.Context, restaurantID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, restaurant_id, category_id, name, price_cents, cost_cents, sku, available, emoji, active, created_at, updated_at
		FROM products WHERE restaurant_id = $1 AND active = true ORDER BY name`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.RestaurantID, &p.CategoryID, &p.Name, &p.PriceCents, &p.CostCents, &p.SKU, &p.Available, &p.Emoji, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, category_id, name, price_cents, cost_cents, sku, available, emoji, active, created_at, updated_at
		FROM products WHERE id = $1`, id)
	var p Product
	err := row.Scan(&p.ID, &p.RestaurantID, &p.CategoryID, &p.Name, &p.PriceCents, &p.CostCents, &p.SKU, &p.Available, &p.Emoji, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// UpsertProductParams creates or updates a product. SKU uniqueness within a
// restaurant is enforced by a unique index (§3).
type UpsertProductParams struct {
	ID           pgtype.UUID
	RestaurantID uuid.UUID
	CategoryID   pgtype.UUID
	Name         string
	PriceCents   int64
	CostCents    pgtype.Int8
	SKU          pgtype.Text
	Available    bool
	Emoji        string
}

func (q *Queries) UpsertProduct(ctx context.Context, arg UpsertProductParams) (Product, error) {
	id := arg.ID
	if !id.Valid {
		id = pgtype.UUID{Bytes: uuid.New(), Valid: true}
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO products (id, restaurant_id, category_id, name, price_cents, cost_cents, sku, available, emoji, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			name = EXCLUDED.name,
			price_cents = EXCLUDED.price_cents,
			cost_cents = EXCLUDED.cost_cents,
			sku = EXCLUDED.sku,
			available = EXCLUDED.available,
			emoji = EXCLUDED.emoji,
			updated_at = now()
		RETURNING id, restaurant_id, category_id, name, price_cents, cost_cents, sku, available, emoji, active, created_at, updated_at`,
		id, arg.RestaurantID, arg.CategoryID, arg.Name, arg.PriceCents, arg.CostCents, arg.SKU, arg.Available, arg.Emoji)
	var p Product
	err := row.Scan(&p.ID, &p.RestaurantID, &p.CategoryID, &p.Name, &p.PriceCents, &p.CostCents, &p.SKU, &p.Available, &p.Emoji, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// DeactivateProduct performs the soft-delete named in §3: product deletion
// never removes the row, since historical order lines reference it.
func (q *Queries) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE products SET active = false, available = false, updated_at = now() WHERE id = $1`, id)
	return err
}
