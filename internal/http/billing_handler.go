package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumenpress/internal/service"
)

// BillingHandler mantiene dependencias para los endpoints de Stripe.
type BillingHandler struct {
	logger  *zap.Logger
	billing *service.BillingService
}

// NewBillingHandler crea una instancia de BillingHandler con dependencias necesarias.
func NewBillingHandler(logger *zap.Logger, billing *service.BillingService) *BillingHandler {
	return &BillingHandler{logger: logger, billing: billing}
}

// Config maneja GET /stripe/config.
func (h *BillingHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":         h.billing.Enabled(),
		"publishable_key": h.billing.PublishableKey(),
	})
}

// CreateCheckout maneja POST /stripe/create-checkout. Requiere sesión: el
// user id viaja en la metadata de la sesión de checkout.
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req struct {
		Product  string `json:"product" binding:"required"`
		Embedded bool   `json:"embedded"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess, err := h.billing.CreateCheckout(c.Request.Context(), claims.UserID, req.Product, req.Embedded)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownProduct):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown product"})
		case errors.Is(err, service.ErrBillingDisabled):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "billing unavailable"})
		default:
			h.logger.Error("create checkout failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create checkout"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":    sess.ID,
		"client_secret": sess.ClientSecret,
		"url":           sess.URL,
	})
}

// CheckoutSuccess maneja GET /stripe/checkout-success. Un error de
// verificación redirige a la cuenta sin mostrar fallo al usuario.
func (h *BillingHandler) CheckoutSuccess(c *gin.Context) {
	target, err := h.billing.ConfirmCheckout(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		h.logger.Warn("checkout confirmation failed", zap.Error(err))
		c.Redirect(http.StatusSeeOther, h.billing.AccountURL())
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}

// Webhook maneja POST /stripe/webhook. Lee el body crudo antes de cualquier
// binding: la verificación de firma necesita los bytes exactos.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}
	if err := h.billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}
	// Siempre 200 tras una firma válida: un update perdido se recupera
	// reabriendo checkout-success, un retry storm no.
	c.JSON(http.StatusOK, gin.H{"received": true})
}
