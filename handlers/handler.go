package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"openfashion/billing"
	"openfashion/database"
	"openfashion/googleauth"
	"openfashion/logger"
	"openfashion/models"
	"openfashion/search"
	"openfashion/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	requestTimeout  = 10 * time.Second
	upstreamTimeout = 60 * time.Second
	maxUploadBytes  = 20 << 20
)

// Stylist is the LLM surface used by the style, chat and search routes.
type Stylist interface {
	BuildProfile(ctx context.Context, responses []models.QuizResponse) (string, []models.StylePreference, error)
	UpdateProfile(ctx context.Context, summary string, recent []models.Interaction) (string, []models.StylePreference, error)
	Recommend(ctx context.Context, summary string, recent []models.Interaction) ([]models.Recommendation, error)
	ProfileQueries(ctx context.Context, summary string, categories []string) ([]string, error)
	OptimizeQuery(ctx context.Context, query string, profile *models.StyleProfile) string
	Suggestions(ctx context.Context, profile *models.StyleProfile) ([]string, error)
	StartChat(ctx context.Context, profile *models.StyleProfile) (models.ChatReply, error)
	Chat(ctx context.Context, profile *models.StyleProfile, history []models.ChatTurn, message string) (models.ChatReply, error)
}

// Billing is the payment processor surface used by the subscription routes.
type Billing interface {
	EnsureCustomer(ctx context.Context, email, name string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID string) (*billing.SubscriptionIntent, error)
	CreateCheckoutSession(ctx context.Context, email, tierID, successURL, cancelURL string) (*billing.CheckoutSession, error)
	CreateEmbeddedCheckout(ctx context.Context, email string) (string, error)
	CancelAtPeriodEnd(ctx context.Context, email string) (*billing.Result, error)
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (*billing.Result, error)
}

// JobQueue persists and queues an analysis job.
type JobQueue interface {
	Create(ctx context.Context, userID, imageURL, filename string) (*models.AnalysisJob, error)
}

// Handler carries the dependencies of every route. The caller's email is
// read from the "userId" context key set by the auth middleware.
type Handler struct {
	Store          *database.Store
	Secret         string
	TokenTTL       time.Duration
	Storage        storage.Uploader
	Stylist        Stylist
	Search         search.Searcher
	Google         googleauth.Verifier
	Billing        Billing
	Quota          *billing.Quota
	Jobs           JobQueue
	VAPIDPublicKey string
}

func currentEmail(c *gin.Context) string {
	return c.GetString("userId")
}

// currentUser loads the caller or writes the error response itself.
func (h *Handler) currentUser(ctx context.Context, c *gin.Context) (*models.User, bool) {
	user, err := h.Store.Users.FindByEmail(ctx, currentEmail(c))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return nil, false
	}
	if err != nil {
		logger.Get().Error("[Handler] load current user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	return user, true
}

// storeError maps repository errors to responses. notFound is the 404 message.
func storeError(c *gin.Context, err error, notFound, op string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, database.ErrDuplicate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Duplicate entry"})
	default:
		logger.Get().Error("[Handler] "+op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
	}
}

// readImage reads a multipart file that must carry an image/* content type.
func readImage(c *gin.Context, field string) ([]byte, string, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
		return nil, "", false
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, "", false
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read file"})
		return nil, "", false
	}
	defer f.Close()

	// One byte past the cap tells an oversized file from one that fits exactly.
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read file"})
		return nil, "", false
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, "", false
	}
	return data, file.Filename, true
}

// queryInt parses an optional integer query parameter within [min, max].
func queryInt(c *gin.Context, key string, def, min, max int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a number between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)})
		return 0, false
	}
	return n, true
}

// profileOrNil returns the caller's style profile when one exists.
func (h *Handler) profileOrNil(ctx context.Context, email string) *models.StyleProfile {
	profile, err := h.Store.Profiles.Get(ctx, email)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logger.Get().Warn("[Handler] load style profile", zap.String("user", email), zap.Error(err))
		}
		return nil
	}
	return profile
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC()})
}
