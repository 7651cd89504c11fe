package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cypherarest/poscore/internal/catalog"
)

func (s *Server) getMenu(c *gin.Context) {
	restaurantID, valid := restaurantIDParam(c)
	if !valid {
		return
	}

	view, cacheHit, err := s.catalog.GetMenu(c.Request.Context(), restaurantID)
	if err != nil {
		fail(c, err)
		return
	}
	if cacheHit {
		c.Header("X-Cache", "hit")
	} else if !s.cacheC.Available() {
		c.Header("X-Cache", "bypass")
	} else {
		c.Header("X-Cache", "miss")
	}
	ok(c, http.StatusOK, view)
}

func (s *Server) upsertProduct(c *gin.Context) {
	restaurantID, valid := restaurantIDParam(c)
	if !valid {
		return
	}

	var req struct {
		ID         *string `json:"id"`
		CategoryID *string `json:"category_id"`
		Name       string  `json:"name" binding:"required"`
		PriceCents int64   `json:"price_cents" binding:"required"`
		CostCents  *int64  `json:"cost_cents"`
		SKU        *string `json:"sku"`
		Available  bool    `json:"available"`
		Emoji      string  `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrBadRequest)
		return
	}

	params := catalog.UpsertProductParams{
		Name: req.Name, PriceCents: req.PriceCents, CostCents: req.CostCents, SKU: req.SKU,
		Available: req.Available, Emoji: req.Emoji,
	}
	if req.ID != nil {
		id, err := uuid.Parse(*req.ID)
		if err != nil {
			fail(c, ErrBadRequest)
			return
		}
		params.ID = &id
	}
	if req.CategoryID != nil {
		catID, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			fail(c, ErrBadRequest)
			return
		}
		params.CategoryID = &catID
	}

	view, err := s.catalog.UpsertProduct(c.Request.Context(), restaurantID, params)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

func (s *Server) deactivateProduct(c *gin.Context) {
	restaurantID, valid := restaurantIDParam(c)
	if !valid {
		return
	}
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		fail(c, ErrBadRequest)
		return
	}
	if err := s.catalog.DeactivateProduct(c.Request.Context(), restaurantID, productID); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": productID.String(), "active": false})
}
