package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/idempotency"
	"github.com/cypherarest/poscore/internal/inventory"
	"github.com/cypherarest/poscore/internal/orders"
	"github.com/cypherarest/poscore/internal/tenant"
)

// Service implements the Payment Orchestrator (C5). It debits inventory for
// a completed order itself (via inventory.DebitForOrderTx against its own
// transaction-scoped Querier) rather than holding an *inventory.Service,
// since that debit must commit atomically with the capture write and an
// injected Service would only ever operate on a different, pool-bound
// connection.
type Service struct {
	pool           *pgxpool.Pool
	providers      map[db.Provider]Provider
	idemStore      *idempotency.Store
	publisher      orders.Publisher
	platformFeeBps int64
}

func New(pool *pgxpool.Pool, idemStore *idempotency.Store, publisher orders.Publisher, platformFeeBps int64, providerList ...Provider) *Service {
	if publisher == nil {
		publisher = orders.NopPublisher{}
	}
	providers := make(map[db.Provider]Provider, len(providerList))
	for _, p := range providerList {
		providers[p.Name()] = p
	}
	return &Service{pool: pool, providers: providers, idemStore: idemStore, publisher: publisher, platformFeeBps: platformFeeBps}
}

// selectProvider picks the lowest-fee enabled provider compatible with the
// customer's chosen method, or the explicitly requested one if given and
// enabled (§4.5).
func (s *Service) selectProvider(methodHint string) (Provider, error) {
	if p, ok := s.providers[db.Provider(methodHint)]; ok {
		if !p.Enabled() {
			return nil, ErrProviderUnavailable
		}
		return p, nil
	}

	var candidates []Provider
	for _, p := range s.providers {
		if p.Enabled() {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrProviderUnavailable
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].FeeBps() < candidates[j].FeeBps() })
	return candidates[0], nil
}

// CreateIntentRequestDTO is the HTTP-facing input to CreateIntent.
type CreateIntentRequestDTO struct {
	OrderID            uuid.UUID
	Method             string
	ExpectedTotalCents int64
	ClientFeeCents     int64
	IdempotencyKey     string
}

// IntentResponse is what the client receives from create-intent.
type IntentResponse struct {
	PaymentID     string `json:"payment_id"`
	Provider      string `json:"provider"`
	IntentRef     string `json:"intent_ref"`
	ClientPayload string `json:"client_payload"`
	ExpiresAt     string `json:"expires_at"`
	FeeCents      int64  `json:"fee_cents"`
}

// feeToleranceCents is the maximum disagreement allowed between a client's
// displayed fee and the server-computed fee (§4.5).
const feeToleranceCents = 1

// CreateIntent verifies the order is confirmed, computes fees, creates a
// provider-side intent, and persists a pending payment row keyed by
// (order_id, client_idempotency_key) (§4.5 step 1).
func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequestDTO) (IntentResponse, error) {
	q := db.New(s.pool)

	order, err := q.GetOrder(ctx, req.OrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return IntentResponse{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return IntentResponse{}, err
	}
	if err := requireRestaurant(ctx, order.RestaurantID); err != nil {
		return IntentResponse{}, err
	}
	if order.Status != db.OrderStatusConfirmed {
		return IntentResponse{}, ErrOrderNotConfirmed
	}

	if req.IdempotencyKey != "" {
		if existing, err := q.GetPaymentByIdempotencyKey(ctx, req.OrderID, req.IdempotencyKey); err == nil {
			return paymentToIntentResponse(existing), nil
		}
	}

	provider, err := s.selectProvider(req.Method)
	if err != nil {
		return IntentResponse{}, err
	}

	feeBps := provider.FeeBps() + s.platformFeeBps
	computedFeeCents := order.TotalCents * feeBps / 10000
	if abs64(computedFeeCents-req.ClientFeeCents) > feeToleranceCents {
		return IntentResponse{}, ErrFeeMismatch
	}

	intent, err := provider.CreateIntent(ctx, CreateIntentRequest{
		AmountCents: order.TotalCents, Currency: "GBP", OrderRef: order.ID.String(), MethodHint: req.Method,
	})
	if err != nil {
		return IntentResponse{}, pkgerrors.Wrap(err, "create provider intent")
	}

	var idemKey pgtype.Text
	if req.IdempotencyKey != "" {
		idemKey = pgtype.Text{String: req.IdempotencyKey, Valid: true}
	}

	payment, err := q.CreatePayment(ctx, db.CreatePaymentParams{
		RestaurantID:      order.RestaurantID,
		OrderID:           order.ID,
		Provider:          provider.Name(),
		ProviderIntentRef: pgtype.Text{String: intent.IntentRef, Valid: true},
		AmountCents:       order.TotalCents,
		Status:            db.PaymentStatusPending,
		CommissionRateBps: pgtype.Int8{Int64: feeBps, Valid: true},
		IdempotencyKey:    idemKey,
	})
	if err != nil {
		return IntentResponse{}, fmt.Errorf("persist pending payment: %w", err)
	}

	return IntentResponse{
		PaymentID: payment.ID.String(), Provider: string(provider.Name()), IntentRef: intent.IntentRef,
		ClientPayload: intent.ClientPayload, ExpiresAt: intent.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		FeeCents: computedFeeCents,
	}, nil
}

func paymentToIntentResponse(p db.Payment) IntentResponse {
	resp := IntentResponse{PaymentID: p.ID.String(), Provider: string(p.Provider)}
	if p.ProviderIntentRef.Valid {
		resp.IntentRef = p.ProviderIntentRef.String
	}
	return resp
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func requireRestaurant(ctx context.Context, restaurantID uuid.UUID) error {
	tc, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	return tc.RequireRestaurant(restaurantID)
}

// HandleWebhook verifies authenticity, applies idempotent processing keyed
// by (provider, provider_event_id), and drives the capture protocol
// (§4.5 steps 2-3).
func (s *Service) HandleWebhook(ctx context.Context, providerName db.Provider, headers http.Header, body []byte) error {
	provider, ok := s.providers[providerName]
	if !ok {
		return ErrProviderUnavailable
	}

	event, err := provider.VerifyWebhook(ctx, headers, body)
	if err != nil {
		return err
	}

	seen, err := s.idemStore.CheckWebhook(ctx, string(providerName), event.ProviderEventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	if err := s.applyCapture(ctx, providerName, event); err != nil {
		return err
	}

	return s.idemStore.PutWebhook(ctx, string(providerName), event.ProviderEventID, nil)
}

// applyCapture opens a transaction, locks the order, fails any other
// in-flight pending payment, inserts the captured payment's commission
// record, and advances order status if the payment covers the full total
// (§4.5 step 3). It runs under the platform owner's context since webhook
// delivery carries no end-user session.
func (s *Service) applyCapture(ctx context.Context, providerName db.Provider, event WebhookEvent) error {
	if event.Status != IntentCaptured {
		return nil
	}

	ctx = tenant.WithContext(ctx, tenant.Context{IsPlatformOwner: true})

	return tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		q := db.New(tx)

		capturing, err := q.GetPaymentByIntentRef(ctx, providerName, event.IntentRef)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		existing, hasCaptured, err := q.GetCapturedPaymentForOrderForUpdate(ctx, capturing.OrderID)
		if err != nil {
			return err
		}
		if hasCaptured && existing.ID != capturing.ID {
			if err := q.MarkPaymentStatus(ctx, capturing.ID, db.PaymentStatusFailed); err != nil {
				return err
			}
			return ErrDoubleCapture
		}

		pendings, err := q.ListPendingPaymentsForOrderForUpdate(ctx, capturing.OrderID)
		if err != nil {
			return err
		}
		for _, p := range pendings {
			if p.ID == capturing.ID {
				continue
			}
			if err := q.MarkPaymentStatus(ctx, p.ID, db.PaymentStatusFailed); err != nil {
				return err
			}
		}

		if err := q.MarkPaymentStatus(ctx, capturing.ID, db.PaymentStatusCaptured); err != nil {
			return err
		}

		rateBps := int64(0)
		if capturing.CommissionRateBps.Valid {
			rateBps = capturing.CommissionRateBps.Int64
		}
		commissionCents := capturing.AmountCents * rateBps / 10000
		if _, err := q.CreateCommissionRecord(ctx, db.CreateCommissionRecordParams{
			PaymentID: capturing.ID, RestaurantID: capturing.RestaurantID, RateBps: rateBps, AmountCents: commissionCents,
		}); err != nil {
			return err
		}

		order, err := q.GetOrderForUpdate(ctx, capturing.OrderID)
		if err != nil {
			return err
		}
		if capturing.AmountCents >= order.TotalCents {
			nextSeq := order.EventSeq + 1
			if err := q.UpdateOrderStatus(ctx, order.ID, db.OrderStatusCompleted, nextSeq); err != nil {
				return err
			}

			lines, err := q.ListOrderLines(ctx, order.ID)
			if err != nil {
				return err
			}
			if err := inventory.DebitForOrderTx(ctx, q, order.RestaurantID, order.ID, lines); err != nil {
				return err
			}

			s.publisher.Publish(orders.Event{
				Topic: "payment.captured", RestaurantID: order.RestaurantID, OrderID: order.ID, Sequence: nextSeq,
				Data: map[string]any{"payment_id": capturing.ID.String()},
			})
		}
		return nil
	})
}

// Refund issues a full or partial refund (§4.5). A refund is inserted as a
// new payment row linked to the original with a negative amount.
func (s *Service) Refund(ctx context.Context, paymentID uuid.UUID, amountCents int64) error {
	return tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		q := db.New(tx)

		original, err := q.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := requireRestaurant(ctx, original.RestaurantID); err != nil {
			return err
		}

		captured, refunded, err := q.SumCapturedAndRefunds(ctx, original.OrderID)
		if err != nil {
			return err
		}
		if refunded+amountCents > captured {
			return ErrRefundExceedsCapture
		}

		provider, ok := s.providers[original.Provider]
		if !ok {
			return ErrProviderUnavailable
		}
		providerRef := ""
		if original.ProviderPaymentRef.Valid {
			providerRef = original.ProviderPaymentRef.String
		} else if original.ProviderIntentRef.Valid {
			providerRef = original.ProviderIntentRef.String
		}
		if _, err := provider.Refund(ctx, providerRef, amountCents); err != nil {
			return pkgerrors.Wrap(err, "provider refund")
		}

		if _, err := q.CreatePayment(ctx, db.CreatePaymentParams{
			RestaurantID: original.RestaurantID, OrderID: original.OrderID, Provider: original.Provider,
			AmountCents: -amountCents, Status: db.PaymentStatusRefunded,
			RefundOfPaymentID: pgtype.UUID{Bytes: original.ID, Valid: true},
		}); err != nil {
			return err
		}

		if refunded+amountCents == captured {
			order, err := q.GetOrderForUpdate(ctx, original.OrderID)
			if err != nil {
				return err
			}
			nextSeq := order.EventSeq + 1
			if err := q.UpdateOrderStatus(ctx, order.ID, db.OrderStatusRefunded, nextSeq); err != nil {
				return err
			}
			s.publisher.Publish(orders.Event{
				Topic: "payment.refunded", RestaurantID: order.RestaurantID, OrderID: order.ID, Sequence: nextSeq,
			})
		}
		return nil
	})
}
