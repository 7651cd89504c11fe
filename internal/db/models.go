package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Role is a user's role within the platform or a restaurant.
type Role string

const (
	RolePlatformOwner Role = "platform_owner"
	RoleRestaurantOwner Role = "restaurant_owner"
	RoleManager       Role = "manager"
	RoleCashier       Role = "cashier"
	RoleServer        Role = "server"
	RoleCook          Role = "cook"
)

// SubscriptionTier gates features and commission rate for a restaurant.
type SubscriptionTier string

const (
	TierBasic      SubscriptionTier = "basic"
	TierPremium    SubscriptionTier = "premium"
	TierEnterprise SubscriptionTier = "enterprise"
)

// OrderType is how an order will be fulfilled.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

// OrderStatus is a position in the order lifecycle state machine (§4.4).
type OrderStatus string

const (
	OrderStatusDraft      OrderStatus = "draft"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus is the lifecycle state of a Payment row.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCaptured  PaymentStatus = "captured"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Provider identifies a payment processor integration.
type Provider string

const (
	ProviderQR       Provider = "qr"
	ProviderSumUp    Provider = "sumup"
	ProviderStripe   Provider = "stripe"
	ProviderApplePay Provider = "apple_pay"
)

// Platform is the top-level tenant container.
type Platform struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Restaurant is a single tenant. IsOpen gates order confirmation (§4.4,
// SPEC_FULL supplemented feature).
type Restaurant struct {
	ID               uuid.UUID
	PlatformID       uuid.UUID
	Name             string
	SubscriptionTier SubscriptionTier
	IsOpen           bool
	CatalogVersion   int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// User is a platform user, identified externally by ExternalUserID.
type User struct {
	ID             uuid.UUID
	ExternalUserID string
	Email          string
	EmailVerified  bool
	Role           Role
	RestaurantID   pgtype.UUID
	Disabled       bool
	LastLoginAt    pgtype.Timestamptz
	CreatedAt      time.Time
}

// Category groups products for a restaurant's menu.
type Category struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	SortOrder    int32
	CreatedAt    time.Time
}

// Product is a menu item. CostPrice is optional and surfaced read-only for
// margin reporting (SPEC_FULL supplement); it is never shown to customers.
type Product struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	CategoryID   pgtype.UUID
	Name         string
	PriceCents   int64
	CostCents    pgtype.Int8
	SKU          pgtype.Text
	Available    bool
	Emoji        string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Order is the header row for a restaurant's order; lines are stored
// separately in OrderLine.
type Order struct {
	ID              uuid.UUID
	RestaurantID    uuid.UUID
	OrderNumber     int64
	Type            OrderType
	Status          OrderStatus
	SubtotalCents   int64
	TaxCents        int64
	ServiceChargeCents int64
	DiscountCents   int64
	TotalCents      int64
	ServerUserID    pgtype.UUID
	CreatedByUserID uuid.UUID
	CustomerRef     pgtype.Text
	EventSeq        int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderLine references a product at capture-time price.
type OrderLine struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	RestaurantID uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	UnitPriceCents int64
	Quantity     int32
	CreatedAt    time.Time
}

// Payment is a (restaurant, order, provider, amount, status) record.
type Payment struct {
	ID               uuid.UUID
	RestaurantID     uuid.UUID
	OrderID          uuid.UUID
	Provider         Provider
	ProviderIntentRef pgtype.Text
	ProviderPaymentRef pgtype.Text
	AmountCents      int64
	Status           PaymentStatus
	CommissionRateBps pgtype.Int8
	CommissionAmountCents pgtype.Int8
	RefundOfPaymentID pgtype.UUID
	IdempotencyKey   pgtype.Text
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CommissionRecord is the platform's computed share of a captured payment.
// Immutable once written.
type CommissionRecord struct {
	ID           uuid.UUID
	PaymentID    uuid.UUID
	RestaurantID uuid.UUID
	RateBps      int64
	AmountCents  int64
	CreatedAt    time.Time
}

// InventoryItem tracks stock for a (restaurant, product) pair.
type InventoryItem struct {
	ID            uuid.UUID
	RestaurantID  uuid.UUID
	ProductID     uuid.UUID
	StockLevel    int64
	MinStock      int64
	MaxStock      int64
	UnitCostCents int64
	UpdatedAt     time.Time
}

// InventoryMovement is an append-only stock ledger entry.
type InventoryMovement struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	ProductID    uuid.UUID
	Delta        int64
	Reason       string
	OrderID      pgtype.UUID
	CreatedAt    time.Time
}

// IdempotencyRecord backs the shared idempotency store (§9): one store for
// both order mutations and webhook event IDs.
type IdempotencyRecord struct {
	RestaurantID       pgtype.UUID
	Key                string
	RequestFingerprint string
	ResponseBody       []byte
	CreatedAt          time.Time
	ExpiresAt          time.Time
}
