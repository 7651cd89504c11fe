// Package inventory implements the append-only stock movement ledger named
// in §3 (Inventory Item) and the SUPPLEMENTED FEATURES automatic debit on
// completion of an order by a captured payment.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cypherarest/poscore/internal/db"
)

const (
	ReasonSale      = "sale"
	ReasonAdjustment = "adjustment"
	ReasonRestock   = "restock"
)

// Service records stock movements and reports current stock levels.
type Service struct {
	queries db.Querier
}

func New(queries db.Querier) *Service {
	return &Service{queries: queries}
}

// recordMovement appends a ledger entry and adjusts the running stock level
// (§3: stock movements are append-only), against whichever Querier the
// caller supplies; the two writes are atomic only on a transaction-bound one — the service's own pool-bound handle, or a
// transaction-scoped one passed in by another package's caller.
func recordMovement(ctx context.Context, q db.Querier, restaurantID, productID uuid.UUID, delta int64, reason string, orderID *uuid.UUID) (db.InventoryMovement, error) {
	var orderRef pgtype.UUID
	if orderID != nil {
		orderRef = pgtype.UUID{Bytes: *orderID, Valid: true}
	}
	movement, err := q.RecordInventoryMovement(ctx, db.RecordInventoryMovementParams{
		RestaurantID: restaurantID,
		ProductID:    productID,
		Delta:        delta,
		Reason:       reason,
		OrderID:      orderRef,
	})
	if err != nil {
		return db.InventoryMovement{}, fmt.Errorf("record inventory movement: %w", err)
	}
	return movement, nil
}

// RecordMovement appends a ledger entry and adjusts the running stock level
// (§3: stock movements are append-only) through the service's own Querier;
// the two writes share a transaction only if that Querier is transaction-bound.
func (s *Service) RecordMovement(ctx context.Context, restaurantID, productID uuid.UUID, delta int64, reason string, orderID *uuid.UUID) (db.InventoryMovement, error) {
	return recordMovement(ctx, s.queries, restaurantID, productID, delta, reason, orderID)
}

// CurrentStock returns the current stock level for (restaurantID, productID).
func (s *Service) CurrentStock(ctx context.Context, restaurantID, productID uuid.UUID) (int64, error) {
	item, err := s.queries.GetInventoryItem(ctx, restaurantID, productID)
	if err != nil {
		return 0, err
	}
	return item.StockLevel, nil
}

// DebitForOrder records one sale movement per order line through the
// service's own Querier, outside any caller's transaction; callers that need
// the debit inside their own transaction use DebitForOrderTx.
func (s *Service) DebitForOrder(ctx context.Context, restaurantID, orderID uuid.UUID, lines []db.OrderLine) error {
	return DebitForOrderTx(ctx, s.queries, restaurantID, orderID, lines)
}

// DebitForOrderTx is the transaction-scoped counterpart of DebitForOrder, for
// callers (such as the payment orchestrator's capture path) that already hold
// a transaction-bound db.Querier and need the stock debit to commit alongside
// their own writes rather than on the service's own pool-bound handle.
func DebitForOrderTx(ctx context.Context, q db.Querier, restaurantID, orderID uuid.UUID, lines []db.OrderLine) error {
	for _, l := range lines {
		if _, err := recordMovement(ctx, q, restaurantID, l.ProductID, -int64(l.Quantity), ReasonSale, &orderID); err != nil {
			return err
		}
	}
	return nil
}
