package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateOrderParams seeds a new order in draft status with order_number
// already allocated by NextOrderNumber in the same transaction.
type CreateOrderParams struct {
	RestaurantID    uuid.UUID
	OrderNumber     int64
	Type            OrderType
	CreatedByUserID uuid.UUID
	ServerUserID    pgtype.UUID
	CustomerRef     pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (id, restaurant_id, order_number, type, status, subtotal_cents, tax_cents, service_charge_cents,
			discount_cents, total_cents, server_user_id, created_by_user_id, customer_ref, event_seq, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'draft', 0, 0, 0, 0, 0, $5, $6, $7, 0, now(), now())
		RETURNING id, restaurant_id, order_number, type, status, subtotal_cents, tax_cents, service_charge_cents,
			discount_cents, total_cents, server_user_id, created_by_user_id, customer_ref, event_seq, created_at, updated_at`,
		uuid.New(), arg.RestaurantID, arg.OrderNumber, arg.Type, arg.ServerUserID, arg.CreatedByUserID, arg.CustomerRef)
	return scanOrder(row)
}

// NextOrderNumber allocates a restaurant-scoped monotonic order number using
// a per-restaurant sequence row, locked for the duration of the enclosing
// transaction so concurrent CreateOrder calls never collide (§4.4).
func (q *Queries) NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_number_sequences (restaurant_id, next_value)
		VALUES ($1, 1001)
		ON CONFLICT (restaurant_id) DO UPDATE SET next_value = order_number_sequences.next_value + 1
		RETURNING next_value`, restaurantID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

// GetOrderForUpdate locks the order row for the duration of the enclosing
// transaction (§4.4 concurrency: "acquire a row-level lock via SELECT ...
// FOR UPDATE"), serializing conflicting concurrent mutations.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, order_number, type, status, subtotal_cents, tax_cents, service_charge_cents,
			discount_cents, total_cents, server_user_id, created_by_user_id, customer_ref, event_seq, created_at, updated_at
		FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, order_number, type, status, subtotal_cents, tax_cents, service_charge_cents,
			discount_cents, total_cents, server_user_id, created_by_user_id, customer_ref, event_seq, created_at, updated_at
		FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// UpdateOrderTotalsParams is written after every line mutation (§3 invariant
// 3: total recomputed and compared before commit).
type UpdateOrderTotalsParams struct {
	ID                 uuid.UUID
	SubtotalCents      int64
	TaxCents           int64
	ServiceChargeCents int64
	DiscountCents      int64
	TotalCents         int64
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders SET subtotal_cents = $2, tax_cents = $3, service_charge_cents = $4, discount_cents = $5,
			total_cents = $6, updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.SubtotalCents, arg.TaxCents, arg.ServiceChargeCents, arg.DiscountCents, arg.TotalCents)
	return err
}

// UpdateOrderStatus advances the state machine and stamps the next monotonic
// event sequence number in the same statement (§4.4 ordering guarantees).
func (q *Queries) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, nextSeq int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders SET status = $2, event_seq = $3, updated_at = now() WHERE id = $1`,
		id, status, nextSeq)
	return err
}

// ReplaceOrderLines deletes and reinserts an order's lines within the
// caller's transaction; only valid while the order is in draft (§4.4).
func (q *Queries) ReplaceOrderLines(ctx context.Context, orderID uuid.UUID, lines []OrderLine) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	for _, l := range lines {
		id := l.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := q.db.Exec(ctx, `
			INSERT INTO order_lines (id, order_id, restaurant_id, product_id, product_name, unit_price_cents, quantity, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			id, orderID, l.RestaurantID, l.ProductID, l.ProductName, l.UnitPriceCents, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, restaurant_id, product_id, product_name, unit_price_cents, quantity, created_at
		FROM order_lines WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.RestaurantID, &l.ProductID, &l.ProductName, &l.UnitPriceCents, &l.Quantity, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListOrders backs the paginated restaurant order list. The
// `(restaurant_id, status, created_at desc)` index named in §6 backs it.
func (q *Queries) ListOrders(ctx context.Context, restaurantID uuid.UUID, limit, offset int32) ([]Order, int64, error) {
	var total int64
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE restaurant_id = $1`, restaurantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.db.Query(ctx, `
		SELECT id, restaurant_id, order_number, type, status, subtotal_cents, tax_cents, service_charge_cents,
			discount_cents, total_cents, server_user_id, created_by_user_id, customer_ref, event_seq, created_at, updated_at
		FROM orders WHERE restaurant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		restaurantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.RestaurantID, &o.OrderNumber, &o.Type, &o.Status, &o.SubtotalCents, &o.TaxCents,
		&o.ServiceChargeCents, &o.DiscountCents, &o.TotalCents, &o.ServerUserID, &o.CreatedByUserID, &o.CustomerRef,
		&o.EventSeq, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
