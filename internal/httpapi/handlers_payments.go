package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cypherarest/poscore/internal/db"
	"github.com/cypherarest/poscore/internal/payments"
)

func (s *Server) createPaymentIntent(c *gin.Context) {
	var req struct {
		OrderID            string `json:"order_id" binding:"required"`
		ExpectedTotalCents int64  `json:"expected_total_cents"`
		ClientFeeCents     int64  `json:"client_fee_cents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrBadRequest)
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		fail(c, ErrBadRequest)
		return
	}

	resp, err := s.payments.CreateIntent(c.Request.Context(), payments.CreateIntentRequestDTO{
		OrderID: orderID, Method: c.Param("method"), ExpectedTotalCents: req.ExpectedTotalCents,
		ClientFeeCents: req.ClientFeeCents, IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, resp)
}

func (s *Server) refundPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("payment"))
	if err != nil {
		fail(c, ErrBadRequest)
		return
	}
	var req struct {
		AmountCents int64 `json:"amount_cents" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrBadRequest)
		return
	}
	if err := s.payments.Refund(c.Request.Context(), paymentID, req.AmountCents); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"payment_id": paymentID.String(), "refunded_cents": req.AmountCents})
}

// handlePaymentWebhook is intentionally unauthenticated at the Gin
// middleware layer (providers cannot carry our bearer tokens); authenticity
// instead comes from each provider's own signature, verified inside
// Service.HandleWebhook before anything is trusted (§4.5).
func (s *Server) handlePaymentWebhook(c *gin.Context) {
	provider := db.Provider(c.Param("provider"))
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, ErrBadRequest)
		return
	}

	if err := s.payments.HandleWebhook(c.Request.Context(), provider, c.Request.Header, body); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
