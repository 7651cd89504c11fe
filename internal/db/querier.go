package db

import (
	"context"

	"github.com/google/uuid"
)

// Querier is the interface every service depends on instead of *Queries
// directly, so tests can substitute a hand-written fake the way the teacher's
// libs/go/mocks package does for db.Querier.
type Querier interface {
	// Users / identity (C1)
	GetUserByExternalID(ctx context.Context, externalUserID string) (User, error)
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	TouchUserLastLogin(ctx context.Context, userID uuid.UUID) error
	AssignUserRestaurant(ctx context.Context, userID, restaurantID uuid.UUID, role Role) error

	// Restaurants
	CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error)
	GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error)
	SetRestaurantOpen(ctx context.Context, id uuid.UUID, isOpen bool) error
	BumpCatalogVersion(ctx context.Context, restaurantID uuid.UUID) (int64, error)

	// Catalog (C3)
	ListCategories(ctx context.Context, restaurantID uuid.UUID) ([]Category, error)
	ListProducts(ctx context.Context, restaurantID uuid.UUID) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	UpsertProduct(ctx context.Context, arg UpsertProductParams) (Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error

	// Orders (C4)
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int64, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, nextSeq int64) error
	ReplaceOrderLines(ctx context.Context, orderID uuid.UUID, lines []OrderLine) error
	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]OrderLine, error)
	ListOrders(ctx context.Context, restaurantID uuid.UUID, limit, offset int32) ([]Order, int64, error)

	// Payments (C5)
	CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (Payment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, orderID uuid.UUID, key string) (Payment, error)
	GetPaymentByIntentRef(ctx context.Context, provider Provider, intentRef string) (Payment, error)
	GetCapturedPaymentForOrderForUpdate(ctx context.Context, orderID uuid.UUID) (Payment, bool, error)
	ListPendingPaymentsForOrderForUpdate(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
	MarkPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
	SumCapturedAndRefunds(ctx context.Context, orderID uuid.UUID) (capturedCents int64, refundedCents int64, err error)
	CreateCommissionRecord(ctx context.Context, arg CreateCommissionRecordParams) (CommissionRecord, error)
	ListPendingIntents(ctx context.Context) ([]Payment, error)

	// Inventory
	GetInventoryItem(ctx context.Context, restaurantID, productID uuid.UUID) (InventoryItem, error)
	UpsertInventoryItem(ctx context.Context, arg UpsertInventoryItemParams) (InventoryItem, error)
	RecordInventoryMovement(ctx context.Context, arg RecordInventoryMovementParams) (InventoryMovement, error)

	// Idempotency (§9)
	GetIdempotencyRecord(ctx context.Context, restaurantID uuid.UUID, key string) (IdempotencyRecord, error)
	PutIdempotencyRecord(ctx context.Context, arg PutIdempotencyRecordParams) error
	GetWebhookIdempotencyRecord(ctx context.Context, provider, eventID string) (IdempotencyRecord, error)
	PutWebhookIdempotencyRecord(ctx context.Context, provider, eventID string, responseBody []byte) error

	GetDBTX() DBTX
}

var _ Querier = (*Queries)(nil)
