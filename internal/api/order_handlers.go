package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"medschool-core/internal/errs"
	"medschool-core/internal/order"
	"medschool-core/internal/payment"
)

type createOrderRequest struct {
	CourseID      string `json:"course_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// CreateOrder handles POST /api/v1/order/create, wrapped by the
// idempotency gate (§6: "requires Idempotency-Key header"). The gate
// middleware runs this handler at most once per key and replays its
// captured response to any caller that retries with the same key.
func (h *Handler) CreateOrder(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, errs.Unauthorized("missing authentication"))
		return
	}
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	result, err := h.orders.Create(c.Request.Context(), order.CreateRequest{
		UserID:        claims.UserID,
		CourseID:      req.CourseID,
		PaymentMethod: payment.Method(req.PaymentMethod),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, result)
}

// GetOrder handles GET /api/v1/order/{order_id}, the polled status
// endpoint callers use while waiting on an asynchronous payment
// callback.
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, o)
}

// OrderNotify handles POST /api/v1/order/notify/{payment_method}, the
// unauthenticated gateway callback route (§6: "verify signature" —
// signature verification is the gateway-specific
// CallbackHandler.HandleCallback implementation's job).
func (h *Handler) OrderNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, errs.Validation("unreadable callback body"))
		return
	}
	method := payment.Method(c.Param("payment_method"))
	if err := h.orders.HandleCallback(c.Request.Context(), method, body); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"received": true})
}
