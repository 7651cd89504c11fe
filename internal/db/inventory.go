package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func (q *Queries) GetInventoryItem(ctx context.Context, restaurantID, productID uuid.UUID) (InventoryItem, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, product_id, stock_level, min_stock, max_stock, unit_cost_cents, updated_at
		FROM inventory_items WHERE restaurant_id = $1 AND product_id = $2`, restaurantID, productID)
	var i InventoryItem
	err := row.Scan(&i.ID, &i.RestaurantID, &i.ProductID, &i.StockLevel, &i.MinStock, &i.MaxStock, &i.UnitCostCents, &i.UpdatedAt)
	return i, err
}

// UpsertInventoryItemParams seeds or adjusts the static bounds of an
// inventory row. The `(restaurant_id, product_id)` unique index named in §6
// backs the upsert.
type UpsertInventoryItemParams struct {
	RestaurantID  uuid.UUID
	ProductID     uuid.UUID
	MinStock      int64
	MaxStock      int64
	UnitCostCents int64
}

func (q *Queries) UpsertInventoryItem(ctx context.Context, arg UpsertInventoryItemParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO inventory_items (id, restaurant_id, product_id, stock_level, min_stock, max_stock, unit_cost_cents, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6, now())
		ON CONFLICT (restaurant_id, product_id) DO UPDATE SET
			min_stock = EXCLUDED.min_stock, max_stock = EXCLUDED.max_stock, unit_cost_cents = EXCLUDED.unit_cost_cents, updated_at = now()
		RETURNING id, restaurant_id, product_id, stock_level, min_stock, max_stock, unit_cost_cents, updated_at`,
		uuid.New(), arg.RestaurantID, arg.ProductID, arg.MinStock, arg.MaxStock, arg.UnitCostCents)
	var i InventoryItem
	err := row.Scan(&i.ID, &i.RestaurantID, &i.ProductID, &i.StockLevel, &i.MinStock, &i.MaxStock, &i.UnitCostCents, &i.UpdatedAt)
	return i, err
}

// RecordInventoryMovementParams appends one ledger entry and adjusts the
// running stock_level as two statements on the caller's DBTX (one transaction
// only when the caller passes a pgx.Tx); the ledger itself is never
// updated or deleted (§3: stock movements are append-only).
type RecordInventoryMovementParams struct {
	RestaurantID uuid.UUID
	ProductID    uuid.UUID
	Delta        int64
	Reason       string
	OrderID      pgtype.UUID
}

func (q *Queries) RecordInventoryMovement(ctx context.Context, arg RecordInventoryMovementParams) (InventoryMovement, error) {
	if _, err := q.db.Exec(ctx, `
		UPDATE inventory_items SET stock_level = stock_level + $3, updated_at = now()
		WHERE restaurant_id = $1 AND product_id = $2`, arg.RestaurantID, arg.ProductID, arg.Delta); err != nil {
		return InventoryMovement{}, err
	}

	row := q.db.QueryRow(ctx, `
		INSERT INTO inventory_movements (id, restaurant_id, product_id, delta, reason, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, restaurant_id, product_id, delta, reason, order_id, created_at`,
		uuid.New(), arg.RestaurantID, arg.ProductID, arg.Delta, arg.Reason, arg.OrderID)
	var m InventoryMovement
	err := row.Scan(&m.ID, &m.RestaurantID, &m.ProductID, &m.Delta, &m.Reason, &m.OrderID, &m.CreatedAt)
	return m, err
}
