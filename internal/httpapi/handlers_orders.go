package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/orders"
)

func orderIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		fail(c, ErrBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) createOrder(c *gin.Context) {
	restaurantID, valid := restaurantIDParam(c)
	if !valid {
		return
	}

	var req struct {
		Type               string `json:"type" binding:"required"`
		Lines              []struct {
			ProductID string `json:"product_id" binding:"required"`
			Quantity  int32  `json:"quantity" binding:"required"`
		} `json:"lines" binding:"required"`
		CustomerRef        *string `json:"customer_ref"`
		TaxCents           int64   `json:"tax_cents"`
		ServiceChargeCents int64   `json:"service_charge_cents"`
		DiscountCents      int64   `json:"discount_cents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrBadRequest)
		return
	}

	lines := make([]orders.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		productID, err := uuid.Parse(l.ProductID)
		if err != nil {
			fail(c, ErrBadRequest)
			return
		}
		lines = append(lines, orders.LineInput{ProductID: productID, Quantity: l.Quantity})
	}

	idemKey := c.GetHeader("Idempotency-Key")
	view, err := s.orders.CreateOrder(c.Request.Context(), restaurantID, orders.CreateOrderRequest{
		Type: db.OrderType(req.Type), Lines: lines, CustomerRef: req.CustomerRef,
		TaxCents: req.TaxCents, ServiceChargeCents: req.ServiceChargeCents, DiscountCents: req.DiscountCents,
	}, idemKey)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, view)
}

func (s *Server) getOrder(c *gin.Context) {
	if _, valid := restaurantIDParam(c); !valid {
		return
	}
	orderID, valid := orderIDParam(c)
	if !valid {
		return
	}
	view, err := s.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

func (s *Server) listOrders(c *gin.Context) {
	restaurantID, valid := restaurantIDParam(c)
	if !valid {
		return
	}
	page := c.MustGet("page").(int32)
	limit := c.MustGet("limit").(int32)

	views, total, err := s.orders.List(c.Request.Context(), restaurantID, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	okPaginated(c, views, page, limit, total)
}

func (s *Server) updateOrderLines(c *gin.Context) {
	if _, valid := restaurantIDParam(c); !valid {
		return
	}
	orderID, valid := orderIDParam(c)
	if !valid {
		return
	}

	var req struct {
		Add []struct {
			ProductID string `json:"product_id" binding:"required"`
			Quantity  int32  `json:"quantity" binding:"required"`
		} `json:"add"`
		Remove             []string `json:"remove"`
		Modify             []struct {
			LineID   string `json:"line_id" binding:"required"`
			Quantity int32  `json:"quantity" binding:"required"`
		} `json:"modify"`
		TaxCents           int64  `json:"tax_cents"`
		ServiceChargeCents int64  `json:"service_charge_cents"`
		DiscountCents      int64  `json:"discount_cents"`
		ExpectedTotalCents *int64 `json:"expected_total_cents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrBadRequest)
		return
	}

	patch := orders.LinePatch{}
	for _, a := range req.Add {
		productID, err := uuid.Parse(a.ProductID)
		if err != nil {
			fail(c, ErrBadRequest)
			return
		}
		patch.Add = append(patch.Add, orders.LineInput{ProductID: productID, Quantity: a.Quantity})
	}
	for _, r := range req.Remove {
		id, err := uuid.Parse(r)
		if err != nil {
			fail(c, ErrBadRequest)
			return
		}
		patch.Remove = append(patch.Remove, id)
	}
	for _, m := range req.Modify {
		id, err := uuid.Parse(m.LineID)
		if err != nil {
			fail(c, ErrBadRequest)
			return
		}
		patch.Modify = append(patch.Modify, orders.ModifyLine{LineID: id, Quantity: m.Quantity})
	}

	idemKey := c.GetHeader("Idempotency-Key")
	view, err := s.orders.UpdateLines(c.Request.Context(), orderID, patch,
		req.TaxCents, req.ServiceChargeCents, req.DiscountCents, req.ExpectedTotalCents, idemKey)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

func (s *Server) confirmOrder(c *gin.Context) {
	if _, valid := restaurantIDParam(c); !valid {
		return
	}
	orderID, valid := orderIDParam(c)
	if !valid {
		return
	}
	view, err := s.orders.Confirm(c.Request.Context(), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

func (s *Server) advanceOrder(c *gin.Context) {
	if _, valid := restaurantIDParam(c); !valid {
		return
	}
	orderID, valid := orderIDParam(c)
	if !valid {
		return
	}
	var req struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrBadRequest)
		return
	}
	view, err := s.orders.AdvanceStatus(c.Request.Context(), orderID, db.OrderStatus(req.Target))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

func (s *Server) cancelOrder(c *gin.Context) {
	if _, valid := restaurantIDParam(c); !valid {
		return
	}
	orderID, valid := orderIDParam(c)
	if !valid {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	view, err := s.orders.Cancel(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}
