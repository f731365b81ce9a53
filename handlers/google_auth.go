package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"openfashion/database"
	"openfashion/googleauth"
	"openfashion/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GoogleAuthRequest carries either an OAuth code or a Google ID token.
type GoogleAuthRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
	Credential  string `json:"credential"`
}

func (h *Handler) GoogleAuth(c *gin.Context) {
	var req GoogleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Code == "" && req.Credential == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code or credential is required"})
		return
	}
	if h.Google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var (
		identity *googleauth.Identity
		err      error
	)
	if req.Credential != "" {
		identity, err = h.Google.VerifyCredential(ctx, req.Credential)
	} else {
		identity, err = h.Google.Exchange(ctx, req.Code, req.RedirectURI)
	}
	if errors.Is(err, googleauth.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}
	if err != nil {
		logger.Get().Warn("[Handler] google sign-in rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Google authentication failed"})
		return
	}

	existing, err := h.Store.Users.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if existing.GoogleID == "" {
			if err := h.Store.Users.LinkGoogle(ctx, existing.Email, identity.GoogleID); err != nil {
				logger.Get().Warn("[Handler] link google account", zap.String("user", existing.Email), zap.Error(err))
			}
		}
		h.respondToken(c, existing.Email, h.needsQuiz(ctx, existing.Email), false)
		return
	case !errors.Is(err, database.ErrNotFound):
		storeError(c, err, "", "google lookup")
		return
	}

	username, err := googleauth.GenerateUsername(ctx, h.usernameTaken, identity.Email, identity.Name, time.Now())
	if err != nil {
		storeError(c, err, "", "generate username")
		return
	}

	user := newUser(identity.Email, username, "google")
	user.GoogleID = identity.GoogleID
	user.Name = identity.Name
	user.DisplayName = identity.Name
	user.AvatarURL = identity.Picture

	if err := h.Store.Users.Create(ctx, user); err != nil {
		storeError(c, err, "", "create google user")
		return
	}
	h.startQuiz(ctx, user.Email)

	logger.Get().Info("[Handler] google user created", zap.String("user", user.Email), zap.String("username", username))
	h.respondToken(c, user.Email, true, true)
}

func (h *Handler) usernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := h.Store.Users.FindByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
