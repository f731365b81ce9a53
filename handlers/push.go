package handlers

import (
	"context"
	"net/http"

	"openfashion/logger"
	"openfashion/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) GetVapidPublicKey(c *gin.Context) {
	if h.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "VAPID public key not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.VAPIDPublicKey})
}

// SubscribePush stores the browser subscription, replacing any earlier one.
func (h *Handler) SubscribePush(c *gin.Context) {
	var sub webpush.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint and keys are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	email := currentEmail(c)
	if err := h.Store.Push.Save(ctx, &models.PushSubscription{UserID: email, Sub: sub}); err != nil {
		storeError(c, err, "", "save push subscription")
		return
	}
	logger.Get().Info("[Handler] push subscription saved", zap.String("user", email))
	c.JSON(http.StatusOK, gin.H{"message": "Subscribed to push notifications"})
}
