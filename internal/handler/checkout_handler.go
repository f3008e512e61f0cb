package handler

import (
	"net/http"

	"duka/internal/middleware"
	"duka/internal/service"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkout *service.CheckoutService
}

func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type InitiatePaymentRequest struct {
	// Phone in a gateway-acceptable format, optionally with a leading "+".
	// Format validation is the UI's job; only the "+" is normalized here.
	Phone  string  `json:"phone" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// Initiate triggers an STK push for the authenticated customer and returns
// the two-field outcome the checkout UI consumes. Always HTTP 200 once the
// request binds; failure is expressed in the body, never as a 5xx.
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := middleware.GetUserID(c)
	outcome := h.checkout.InitiatePayment(c.Request.Context(), userID, req.Phone, req.Amount)
	c.JSON(http.StatusOK, outcome)
}
