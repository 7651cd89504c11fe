// Package catalog implements the read and mutation paths backing the Menu
// Read Cache (C3): categories and products, shaped the way §4.3 requires
// for mobile clients (decimal-string prices, explicit available/emoji
// fields, no compatibility-shim renaming per §9).
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cypherarest/poscore/internal/cache"
	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/tenant"
)

// ErrSKUTaken indicates a product SKU collision within a restaurant (§3:
// SKU unique within restaurant).
var ErrSKUTaken = errors.New("catalog: sku already in use for this restaurant")

// ProductView is the payload shape mobile clients receive: prices as
// decimal strings with two fractional digits, parsed the same way
// regardless of client locale (§4.3).
type ProductView struct {
	ID         string  `json:"id"`
	CategoryID *string `json:"category_id,omitempty"`
	Name       string  `json:"name"`
	Price      string  `json:"price"`
	SKU        *string `json:"sku,omitempty"`
	Available  bool    `json:"available"`
	Emoji      string  `json:"emoji"`
}

type CategoryView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type MenuView struct {
	Categories []CategoryView `json:"categories"`
	Products   []ProductView  `json:"products"`
}

// Service serves categories/products, consulting the cache before the
// database and keeping cache invalidation (catalog_version bump) inside the
// same transaction as the mutation that caused it (§4.3). Reads use the
// unlocked pool-bound queries handle (the RLS-bypass-on-reads convention
// also used by internal/orders and internal/payments); every write runs
// inside tenant.WithTx so the product write and the catalog_version bump
// commit atomically under RLS.
type Service struct {
	queries db.Querier
	pool    *pgxpool.Pool
	cache   *cache.Cache
}

func New(pool *pgxpool.Pool, c *cache.Cache) *Service {
	return &Service{queries: db.New(pool), pool: pool, cache: c}
}

// GetMenu returns the full categories+products payload for a restaurant,
// serving from cache when the stored catalog_version still matches the
// restaurant's current one. cacheHit reports whether the cache served the
// response, so the HTTP layer can skip setting X-Cache: bypass when it did.
func (s *Service) GetMenu(ctx context.Context, restaurantID uuid.UUID) (view MenuView, cacheHit bool, err error) {
	restaurant, err := s.queries.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return MenuView{}, false, fmt.Errorf("load restaurant: %w", err)
	}

	key := cache.Key(restaurantID.String(), "menu", "")
	if raw, ok := s.cache.Get(ctx, key, restaurant.CatalogVersion); ok {
		var cached MenuView
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, true, nil
		}
	}

	categories, err := s.queries.ListCategories(ctx, restaurantID)
	if err != nil {
		return MenuView{}, false, fmt.Errorf("list categories: %w", err)
	}
	products, err := s.queries.ListProducts(ctx, restaurantID)
	if err != nil {
		return MenuView{}, false, fmt.Errorf("list products: %w", err)
	}

	view = MenuView{
		Categories: make([]CategoryView, 0, len(categories)),
		Products:   make([]ProductView, 0, len(products)),
	}
	for _, c := range categories {
		view.Categories = append(view.Categories, CategoryView{ID: c.ID.String(), Name: c.Name})
	}
	for _, p := range products {
		view.Products = append(view.Products, toProductView(p))
	}

	if raw, err := json.Marshal(view); err == nil {
		s.cache.Set(ctx, key, restaurant.CatalogVersion, raw)
	}

	return view, false, nil
}

// UpsertProductParams is the mutation-side input; price/cost are in cents to
// avoid floating point in money arithmetic (§3, §8 total-consistency law).
type UpsertProductParams struct {
	ID           *uuid.UUID
	CategoryID   *uuid.UUID
	Name         string
	PriceCents   int64
	CostCents    *int64
	SKU          *string
	Available    bool
	Emoji        string
}

// UpsertProduct writes the product and, in the same logical mutation, bumps
// the restaurant's catalog_version so cached entries are invalidated (§4.3:
// "Any mutation ... increments R's catalog_version atomically with the DB
// commit"). Both writes run inside one tenant.WithTx so they commit
// together under RLS.
func (s *Service) UpsertProduct(ctx context.Context, restaurantID uuid.UUID, arg UpsertProductParams) (ProductView, error) {
	if err := tenantRequireRestaurant(ctx, restaurantID); err != nil {
		return ProductView{}, err
	}

	params := db.UpsertProductParams{
		RestaurantID: restaurantID,
		Name:         arg.Name,
		PriceCents:   arg.PriceCents,
		Available:    arg.Available,
		Emoji:        arg.Emoji,
	}
	if arg.ID != nil {
		params.ID = pgtype.UUID{Bytes: *arg.ID, Valid: true}
	}
	if arg.CategoryID != nil {
		params.CategoryID = pgtype.UUID{Bytes: *arg.CategoryID, Valid: true}
	}
	if arg.CostCents != nil {
		params.CostCents = pgtype.Int8{Int64: *arg.CostCents, Valid: true}
	}
	if arg.SKU != nil {
		params.SKU = pgtype.Text{String: *arg.SKU, Valid: true}
	}

	var product db.Product
	err := tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		q := db.New(tx)

		var err error
		product, err = q.UpsertProduct(ctx, params)
		if err != nil {
			return fmt.Errorf("upsert product: %w", err)
		}
		if _, err := q.BumpCatalogVersion(ctx, restaurantID); err != nil {
			return fmt.Errorf("bump catalog version: %w", err)
		}
		return nil
	})
	if err != nil {
		return ProductView{}, err
	}

	return toProductView(product), nil
}

// DeactivateProduct soft-deletes a product and bumps the catalog version
// (§3: product deletion is soft).
func (s *Service) DeactivateProduct(ctx context.Context, restaurantID, productID uuid.UUID) error {
	if err := tenantRequireRestaurant(ctx, restaurantID); err != nil {
		return err
	}
	return tenant.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		q := db.New(tx)
		if err := q.DeactivateProduct(ctx, productID); err != nil {
			return fmt.Errorf("deactivate product: %w", err)
		}
		_, err := q.BumpCatalogVersion(ctx, restaurantID)
		return err
	})
}

func tenantRequireRestaurant(ctx context.Context, restaurantID uuid.UUID) error {
	tc, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	return tc.RequireRestaurant(restaurantID)
}

func toProductView(p db.Product) ProductView {
	view := ProductView{
		ID:        p.ID.String(),
		Name:      p.Name,
		Price:     formatCents(p.PriceCents),
		Available: p.Available,
		Emoji:     p.Emoji,
	}
	if p.CategoryID.Valid {
		id := uuid.UUID(p.CategoryID.Bytes).String()
		view.CategoryID = &id
	}
	if p.SKU.Valid {
		view.SKU = &p.SKU.String
	}
	return view
}

// formatCents renders an integer cents amount as a two-fractional-digit
// decimal string (§4.3: "Numeric strings ... parse consistently regardless
// of locale").
func formatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if neg {
		s = "-" + s
	}
	return s
}
