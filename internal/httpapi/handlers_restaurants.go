package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/tenant"
)

// ErrBadRequest signals a malformed path parameter or request body; it maps
// to HTTP 400 through classify.
var ErrBadRequest = errors.New("httpapi: bad request")

// ErrRestaurantNotFound maps to HTTP 404.
var ErrRestaurantNotFound = errors.New("httpapi: restaurant not found")

func restaurantIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("restaurantId"))
	if err != nil {
		fail(c, ErrBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) createRestaurant(c *gin.Context) {
	tc, err := tenant.FromContext(c.Request.Context())
	if err != nil || !tc.IsPlatformOwner {
		fail(c, errRoleInsufficient)
		return
	}

	var req struct {
		PlatformID       string `json:"platform_id" binding:"required"`
		Name             string `json:"name" binding:"required"`
		SubscriptionTier string `json:"subscription_tier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrBadRequest)
		return
	}
	platformID, err := uuid.Parse(req.PlatformID)
	if err != nil {
		fail(c, ErrBadRequest)
		return
	}

	restaurant, err := s.queries.CreateRestaurant(c.Request.Context(), db.CreateRestaurantParams{
		PlatformID: platformID, Name: req.Name, SubscriptionTier: db.SubscriptionTier(req.SubscriptionTier),
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, restaurantView(restaurant))
}

func (s *Server) getRestaurant(c *gin.Context) {
	id, valid := restaurantIDParam(c)
	if !valid {
		return
	}
	restaurant, err := s.queries.GetRestaurant(c.Request.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		fail(c, ErrRestaurantNotFound)
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	if err := requireCtxRestaurant(c, id); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, restaurantView(restaurant))
}

func (s *Server) setRestaurantOpen(c *gin.Context) {
	id, valid := restaurantIDParam(c)
	if !valid {
		return
	}
	if err := requireCtxRestaurant(c, id); err != nil {
		fail(c, err)
		return
	}

	var req struct {
		IsOpen bool `json:"is_open"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrBadRequest)
		return
	}
	if err := s.queries.SetRestaurantOpen(c.Request.Context(), id, req.IsOpen); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id.String(), "is_open": req.IsOpen})
}

func requireCtxRestaurant(c *gin.Context, id uuid.UUID) error {
	tc, err := tenant.FromContext(c.Request.Context())
	if err != nil {
		return err
	}
	return tc.RequireRestaurant(id)
}

func restaurantView(r db.Restaurant) gin.H {
	return gin.H{
		"id":                r.ID.String(),
		"platform_id":       r.PlatformID.String(),
		"name":              r.Name,
		"subscription_tier": r.SubscriptionTier,
		"is_open":           r.IsOpen,
		"catalog_version":   r.CatalogVersion,
	}
}
