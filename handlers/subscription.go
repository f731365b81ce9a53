package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"openfashion/billing"
	"openfashion/database"
	"openfashion/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBytes = 64 << 10

type CreateSubscriptionRequest struct {
	PriceID    string `json:"price_id" binding:"required"`
	CustomerID string `json:"customer_id" binding:"required"`
}

type CheckoutRequest struct {
	TierID     string `json:"tier_id" binding:"required"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// billingError maps payment errors to responses.
func billingError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, billing.ErrBillingDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
	case errors.Is(err, billing.ErrUnknownTier):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tier"})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		logger.Get().Error("[Handler] "+op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) GetTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": billing.Tiers()})
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	name := user.DisplayName
	if name == "" {
		name = user.Username
	}
	id, err := h.Billing.EnsureCustomer(ctx, user.Email, name)
	if err != nil {
		billingError(c, err, "create customer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer_id": id})
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	if user.StripeCustomerID != "" && user.StripeCustomerID != req.CustomerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Customer does not belong to this user"})
		return
	}
	intent, err := h.Billing.CreateSubscription(ctx, req.CustomerID, req.PriceID)
	if err != nil {
		billingError(c, err, "create subscription")
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	session, err := h.Billing.CreateCheckoutSession(ctx, currentEmail(c), req.TierID, req.SuccessURL, req.CancelURL)
	if err != nil {
		billingError(c, err, "create checkout session")
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) CreateEmbeddedCheckout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	secret, err := h.Billing.CreateEmbeddedCheckout(ctx, currentEmail(c))
	if err != nil {
		billingError(c, err, "create embedded checkout")
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": secret})
}

func (h *Handler) CancelSubscription(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	res, err := h.Billing.CancelAtPeriodEnd(ctx, currentEmail(c))
	if err != nil {
		billingError(c, err, "cancel subscription")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UploadLimit(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	allowance, err := h.Quota.CheckUpload(ctx, currentEmail(c))
	if err != nil {
		storeError(c, err, "User not found", "upload limit")
		return
	}
	c.JSON(http.StatusOK, allowance)
}

// StripeWebhook is unauthenticated; the Stripe-Signature header is the credential.
func (h *Handler) StripeWebhook(c *gin.Context) {
	sig := c.GetHeader("Stripe-Signature")
	if sig == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing stripe-signature header"})
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	res, err := h.Billing.HandleWebhook(ctx, payload, sig)
	if errors.Is(err, billing.ErrInvalidSignature) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}
	if err != nil {
		logger.Get().Error("[Handler] webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
