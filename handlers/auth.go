package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"openfashion/database"
	"openfashion/logger"
	"openfashion/middleware"
	"openfashion/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	NeedsQuiz   bool   `json:"needs_quiz"`
	IsNewUser   bool   `json:"is_new_user"`
}

// MeResponse is the public profile plus the caller's subscription summary.
type MeResponse struct {
	models.Profile
	AuthProvider        string     `json:"auth_provider"`
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionTier    string     `json:"subscription_tier"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty"`
	PendingCancellation bool       `json:"pending_cancellation"`
	WeeklyUploadsUsed   int        `json:"weekly_uploads_used"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}
	if !validUsername(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be 3-30 letters, numbers or underscores"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if _, err := h.Store.Users.FindByEmail(ctx, req.Email); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		storeError(c, err, "", "register lookup")
		return
	}
	if _, err := h.Store.Users.FindByUsername(ctx, req.Username); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username already taken"})
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		storeError(c, err, "", "register lookup")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := newUser(req.Email, req.Username, "email")
	user.PasswordHash = string(hashed)
	user.DisplayName = req.DisplayName
	user.AvatarURL = req.AvatarURL
	user.Bio = req.Bio

	if err := h.Store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email or username already registered"})
			return
		}
		storeError(c, err, "", "create user")
		return
	}
	h.startQuiz(ctx, user.Email)

	logger.Get().Info("[Handler] user registered", zap.String("user", user.Email))
	h.respondToken(c, user.Email, true, true)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if c.ContentType() == binding.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		// OAuth2 password form: the email travels as "username".
		req.Email = c.PostForm("username")
		req.Password = c.PostForm("password")
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := h.Store.Users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		storeError(c, err, "", "login lookup")
		return
	}
	if user == nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.respondToken(c, user.Email, h.needsQuiz(ctx, user.Email), false)
}

func (h *Handler) Me(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	profile := user.Public()
	profile.NeedsQuiz = h.needsQuiz(ctx, user.Email)

	c.JSON(http.StatusOK, MeResponse{
		Profile:             profile,
		AuthProvider:        user.AuthProvider,
		SubscriptionStatus:  user.SubscriptionStatus,
		SubscriptionTier:    user.SubscriptionTier,
		SubscriptionEndDate: user.SubscriptionEndDate,
		PendingCancellation: user.PendingCancellation,
		WeeklyUploadsUsed:   user.WeeklyUploadsUsed,
		CreatedAt:           user.CreatedAt,
	})
}

func newUser(email, username, provider string) *models.User {
	return &models.User{
		Email:              email,
		Username:           username,
		AuthProvider:       provider,
		Followers:          []string{},
		Following:          []string{},
		SubscriptionStatus: models.SubscriptionBasic,
		SubscriptionTier:   models.SubscriptionBasic,
		CreatedAt:          time.Now().UTC(),
	}
}

// startQuiz creates the empty quiz every new account begins with. Failure
// is logged; the user can still start one explicitly.
func (h *Handler) startQuiz(ctx context.Context, email string) {
	quiz := &models.StyleQuiz{UserID: email, Responses: []models.QuizResponse{}, CreatedAt: time.Now().UTC()}
	if err := h.Store.Quizzes.Create(ctx, quiz); err != nil {
		logger.Get().Warn("[Handler] create initial quiz", zap.String("user", email), zap.Error(err))
	}
}

func (h *Handler) needsQuiz(ctx context.Context, email string) bool {
	done, err := h.Store.Quizzes.HasCompleted(ctx, email)
	if err != nil {
		logger.Get().Warn("[Handler] quiz status lookup", zap.String("user", email), zap.Error(err))
		return true
	}
	return !done
}

func (h *Handler) respondToken(c *gin.Context, email string, needsQuiz, isNew bool) {
	token, err := middleware.IssueToken(h.Secret, email, h.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		NeedsQuiz:   needsQuiz,
		IsNewUser:   isNew,
	})
}
