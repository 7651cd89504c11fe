package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/idempotency"
	"github.com/cypherarest/poscore/internal/tenant"
)

// Service implements the Order Engine (C4).
type Service struct {
	pool      *pgxpool.Pool
	idemStore *idempotency.Store
	publisher Publisher
}

func New(pool *pgxpool.Pool, idemStore *idempotency.Store, publisher Publisher) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{pool: pool, idemStore: idemStore, publisher: publisher}
}

// LineInput is one requested order line (product + quantity), priced at the
// product's current price at the moment of the mutation (§3: capture-time
// prices).
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int32
}

// CreateOrderRequest is the input to CreateOrder.
type CreateOrderRequest struct {
	Type        db.OrderType
	Lines       []LineInput
	CustomerRef *string
	TaxCents    int64
	ServiceChargeCents int64
	DiscountCents int64
}

// OrderView is the JSON-facing representation of an order.
type OrderView struct {
	ID            string `json:"id"`
	RestaurantID  string `json:"restaurant_id"`
	OrderNumber   int64  `json:"order_number"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	SubtotalCents int64  `json:"subtotal_cents"`
	TaxCents      int64  `json:"tax_cents"`
	ServiceChargeCents int64 `json:"service_charge_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
	EventSeq      int64  `json:"event_seq"`
}

func toOrderView(o db.Order) OrderView {
	return OrderView{
		ID:                 o.ID.String(),
		RestaurantID:       o.RestaurantID.String(),
		OrderNumber:        o.OrderNumber,
		Type:               string(o.Type),
		Status:             string(o.Status),
		SubtotalCents:      o.SubtotalCents,
		TaxCents:           o.TaxCents,
		ServiceChargeCents: o.ServiceChargeCents,
		DiscountCents:      o.DiscountCents,
		TotalCents:         o.TotalCents,
		EventSeq:           o.EventSeq,
	}
}

// withIdempotency wraps a mutating operation with the shared idempotency
// store contract (§4.4): a replay with a matching fingerprint returns the
// stored response without re-executing fn; a mismatching fingerprint fails
// with IdempotencyConflict; a fresh key executes fn and stores its result.
func withIdempotency[T any](ctx context.Context, s *Service, restaurantID uuid.UUID, idemKey string, request any, fn func() (T, error)) (T, error) {
	var zero T
	if idemKey == "" {
		return fn()
	}

	fp, err := fingerprint(request)
	if err != nil {
		return zero, err
	}

	outcome, stored, err := s.idemStore.Check(ctx, restaurantID, idemKey, fp)
	if errors.Is(err, idempotency.ErrConflict) {
		return zero, ErrIdempotencyConflict
	}
	if err != nil {
		return zero, err
	}
	if outcome == idempotency.Replay {
		var result T
		if err := json.Unmarshal(stored, &result); err != nil {
			return zero, err
		}
		return result, nil
	}

	result, err := fn()
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(result)
	if err == nil {
		_ = s.idemStore.Put(ctx, restaurantID, idemKey, fp, raw)
	}
	return result, nil
}

// CreateOrder allocates a restaurant-scoped monotonic order_number and
// inserts the order in draft status (§4.4).
func (s *Service) CreateOrder(ctx context.Context, restaurantID uuid.UUID, req CreateOrderRequest, idemKey string) (OrderView, error) {
	if err := requireRestaurant(ctx, restaurantID); err != nil {
		return OrderView{}, err
	}

	return withIdempotency(ctx, s, restaurantID, idemKey, req, func() (OrderView, error) {
		tc, err := tenant.FromContext(ctx)
		if err != nil {
			return OrderView{}, err
		}

		var view OrderView
		err = tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
			q := db.New(tx)

			number, err := q.NextOrderNumber(ctx, restaurantID)
			if err != nil {
				return fmt.Errorf("allocate order number: %w", err)
			}

			var customerRef pgtype.Text
			if req.CustomerRef != nil {
				customerRef = pgtype.Text{String: *req.CustomerRef, Valid: true}
			}

			order, err := q.CreateOrder(ctx, db.CreateOrderParams{
				RestaurantID:    restaurantID,
				OrderNumber:     number,
				Type:            req.Type,
				CreatedByUserID: tc.UserID,
				CustomerRef:     customerRef,
			})
			if err != nil {
				return fmt.Errorf("create order: %w", err)
			}

			lines, subtotal, err := s.buildLines(ctx, q, order, req.Lines)
			if err != nil {
				return err
			}

			total := subtotal + req.TaxCents + req.ServiceChargeCents - req.DiscountCents
			if err := q.ReplaceOrderLines(ctx, order.ID, lines); err != nil {
				return fmt.Errorf("write order lines: %w", err)
			}
			if err := q.UpdateOrderTotals(ctx, db.UpdateOrderTotalsParams{
				ID: order.ID, SubtotalCents: subtotal, TaxCents: req.TaxCents,
				ServiceChargeCents: req.ServiceChargeCents, DiscountCents: req.DiscountCents, TotalCents: total,
			}); err != nil {
				return fmt.Errorf("update totals: %w", err)
			}

			order.SubtotalCents, order.TaxCents, order.ServiceChargeCents, order.DiscountCents, order.TotalCents =
				subtotal, req.TaxCents, req.ServiceChargeCents, req.DiscountCents, total
			view = toOrderView(order)
			return nil
		})
		return view, err
	})
}

// buildLines resolves product IDs to capture-time prices and computes the
// line subtotal. Availability is not enforced here (only at Confirm, per
// §4.4) so a draft may hold lines for products that later go unavailable.
func (s *Service) buildLines(ctx context.Context, q db.Querier, order db.Order, inputs []LineInput) ([]db.OrderLine, int64, error) {
	lines := make([]db.OrderLine, 0, len(inputs))
	var subtotal int64
	for _, in := range inputs {
		product, err := q.GetProduct(ctx, in.ProductID)
		if err != nil {
			return nil, 0, fmt.Errorf("load product %s: %w", in.ProductID, err)
		}
		lines = append(lines, db.OrderLine{
			ID:             uuid.New(),
			OrderID:        order.ID,
			RestaurantID:   order.RestaurantID,
			ProductID:      product.ID,
			ProductName:    product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       in.Quantity,
		})
		subtotal += product.PriceCents * int64(in.Quantity)
	}
	return lines, subtotal, nil
}

// LinePatch is UpdateLines' input: draft-only add/remove/modify (§4.4).
type LinePatch struct {
	Add    []LineInput
	Remove []uuid.UUID
	Modify []ModifyLine
}

type ModifyLine struct {
	LineID   uuid.UUID
	Quantity int32
}

// UpdateLines applies patch to a draft order's lines and recomputes totals,
// comparing against ExpectedTotalCents if provided (§4.4 optimistic check).
func (s *Service) UpdateLines(ctx context.Context, orderID uuid.UUID, patch LinePatch, taxCents, serviceChargeCents, discountCents int64, expectedTotalCents *int64, idemKey string) (OrderView, error) {
	restaurantID, err := s.orderRestaurant(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}

	return withIdempotency(ctx, s, restaurantID, idemKey, patch, func() (OrderView, error) {
		var view OrderView
		err := tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
			q := db.New(tx)

			order, err := q.GetOrderForUpdate(ctx, orderID)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			if err != nil {
				return err
			}
			if err := requireRestaurant(ctx, order.RestaurantID); err != nil {
				return err
			}
			if order.Status != db.OrderStatusDraft {
				return ErrInvalidTransition
			}

			existing, err := q.ListOrderLines(ctx, orderID)
			if err != nil {
				return err
			}

			merged := applyPatch(existing, patch)
			var subtotal int64
			for i := range merged {
				if merged[i].UnitPriceCents == 0 {
					product, err := q.GetProduct(ctx, merged[i].ProductID)
					if err != nil {
						return fmt.Errorf("load product: %w", err)
					}
					merged[i].ProductName = product.Name
					merged[i].UnitPriceCents = product.PriceCents
				}
				subtotal += merged[i].UnitPriceCents * int64(merged[i].Quantity)
			}

			total := subtotal + taxCents + serviceChargeCents - discountCents
			if expectedTotalCents != nil && *expectedTotalCents != total {
				return ErrStaleOrderState
			}

			if err := q.ReplaceOrderLines(ctx, orderID, merged); err != nil {
				return err
			}
			if err := q.UpdateOrderTotals(ctx, db.UpdateOrderTotalsParams{
				ID: orderID, SubtotalCents: subtotal, TaxCents: taxCents,
				ServiceChargeCents: serviceChargeCents, DiscountCents: discountCents, TotalCents: total,
			}); err != nil {
				return err
			}

			order.SubtotalCents, order.TaxCents, order.ServiceChargeCents, order.DiscountCents, order.TotalCents =
				subtotal, taxCents, serviceChargeCents, discountCents, total
			view = toOrderView(order)
			return nil
		})
		return view, err
	})
}

func applyPatch(existing []db.OrderLine, patch LinePatch) []db.OrderLine {
	removed := make(map[uuid.UUID]struct{}, len(patch.Remove))
	for _, id := range patch.Remove {
		removed[id] = struct{}{}
	}
	modified := make(map[uuid.UUID]int32, len(patch.Modify))
	for _, m := range patch.Modify {
		modified[m.LineID] = m.Quantity
	}

	out := make([]db.OrderLine, 0, len(existing)+len(patch.Add))
	for _, l := range existing {
		if _, gone := removed[l.ID]; gone {
			continue
		}
		if qty, ok := modified[l.ID]; ok {
			l.Quantity = qty
		}
		out = append(out, l)
	}
	for _, a := range patch.Add {
		out = append(out, db.OrderLine{ID: uuid.New(), ProductID: a.ProductID, Quantity: a.Quantity})
	}
	return out
}

// Confirm transitions draft -> confirmed, requiring at least one line, every
// product currently available, and the restaurant open (§4.4).
func (s *Service) Confirm(ctx context.Context, orderID uuid.UUID) (OrderView, error) {
	var view OrderView
	err := tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		q := db.New(tx)

		order, err := q.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if err := requireRestaurant(ctx, order.RestaurantID); err != nil {
			return err
		}
		if order.Status != db.OrderStatusDraft {
			return ErrInvalidTransition
		}

		restaurant, err := q.GetRestaurant(ctx, order.RestaurantID)
		if err != nil {
			return err
		}
		if !restaurant.IsOpen {
			return ErrRestaurantClosed
		}

		lines, err := q.ListOrderLines(ctx, orderID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrInvalidTransition
		}
		for _, l := range lines {
			product, err := q.GetProduct(ctx, l.ProductID)
			if err != nil {
				return err
			}
			if !product.Available {
				return ErrProductUnavailable
			}
		}

		nextSeq := order.EventSeq + 1
		if err := q.UpdateOrderStatus(ctx, orderID, db.OrderStatusConfirmed, nextSeq); err != nil {
			return err
		}
		order.Status, order.EventSeq = db.OrderStatusConfirmed, nextSeq
		view = toOrderView(order)

		s.publisher.Publish(Event{
			Topic: "order.confirmed", RestaurantID: order.RestaurantID, OrderID: order.ID,
			Sequence: nextSeq, Data: view,
		})
		return nil
	})
	return view, err
}

// validTransitions encodes the state machine from §4.4.
var validTransitions = map[db.OrderStatus]map[db.OrderStatus]bool{
	db.OrderStatusDraft:     {db.OrderStatusCancelled: true},
	db.OrderStatusConfirmed: {db.OrderStatusPreparing: true, db.OrderStatusCancelled: true},
	db.OrderStatusPreparing: {db.OrderStatusReady: true},
	db.OrderStatusReady:     {db.OrderStatusCompleted: true},
}

// AdvanceStatus performs one state-machine step and emits the corresponding
// event (§4.4).
func (s *Service) AdvanceStatus(ctx context.Context, orderID uuid.UUID, target db.OrderStatus) (OrderView, error) {
	var view OrderView
	err := tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		q := db.New(tx)

		order, err := q.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if err := requireRestaurant(ctx, order.RestaurantID); err != nil {
			return err
		}
		if !validTransitions[order.Status][target] {
			return ErrInvalidTransition
		}

		nextSeq := order.EventSeq + 1
		if err := q.UpdateOrderStatus(ctx, orderID, target, nextSeq); err != nil {
			return err
		}
		order.Status, order.EventSeq = target, nextSeq
		view = toOrderView(order)

		s.publisher.Publish(Event{
			Topic: "order.status_changed", RestaurantID: order.RestaurantID, OrderID: order.ID,
			Sequence: nextSeq, Data: view,
		})
		return nil
	})
	return view, err
}

// Cancel is allowed only from draft or confirmed (§4.4). It does not release
// pending payment intents: it leaves payment rows and provider-side intents
// untouched, and the HTTP cancel handler calls only this method.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (OrderView, error) {
	var view OrderView
	err := tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		q := db.New(tx)

		order, err := q.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if err := requireRestaurant(ctx, order.RestaurantID); err != nil {
			return err
		}
		if order.Status != db.OrderStatusDraft && order.Status != db.OrderStatusConfirmed {
			return ErrInvalidTransition
		}

		nextSeq := order.EventSeq + 1
		if err := q.UpdateOrderStatus(ctx, orderID, db.OrderStatusCancelled, nextSeq); err != nil {
			return err
		}
		order.Status, order.EventSeq = db.OrderStatusCancelled, nextSeq
		view = toOrderView(order)

		s.publisher.Publish(Event{
			Topic: "order.cancelled", RestaurantID: order.RestaurantID, OrderID: order.ID,
			Sequence: nextSeq, Data: map[string]any{"order": view, "reason": reason},
		})
		return nil
	})
	return view, err
}

// Get returns a single order without locking, scoped to the caller's tenant
// context.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (OrderView, error) {
	q := db.New(s.pool)
	order, err := q.GetOrder(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderView{}, ErrOrderNotFound
	}
	if err != nil {
		return OrderView{}, err
	}
	if err := requireRestaurant(ctx, order.RestaurantID); err != nil {
		return OrderView{}, err
	}
	return toOrderView(order), nil
}

// List returns a page of orders for restaurantID.
func (s *Service) List(ctx context.Context, restaurantID uuid.UUID, page, limit int32) ([]OrderView, int64, error) {
	if err := requireRestaurant(ctx, restaurantID); err != nil {
		return nil, 0, err
	}
	q := db.New(s.pool)
	orders, total, err := q.ListOrders(ctx, restaurantID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}
	return views, total, nil
}

// orderRestaurant resolves an order's restaurant_id with an unlocked read,
// used only to scope the idempotency-key lookup before the locking
// transaction begins.
func (s *Service) orderRestaurant(ctx context.Context, orderID uuid.UUID) (uuid.UUID, error) {
	q := db.New(s.pool)
	order, err := q.GetOrder(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrOrderNotFound
	}
	return order.RestaurantID, err
}

func requireRestaurant(ctx context.Context, restaurantID uuid.UUID) error {
	tc, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	return tc.RequireRestaurant(restaurantID)
}
