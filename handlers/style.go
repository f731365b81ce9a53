package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"openfashion/database"
	"openfashion/logger"
	"openfashion/models"
	"openfashion/stylequiz"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const recentInteractions = 50

type QuizResponseRequest struct {
	QuestionID string            `json:"question_id" binding:"required"`
	Response   models.QuizAnswer `json:"response" binding:"required"`
}

type TrackInteractionRequest struct {
	UserID          string                 `json:"user_id" binding:"required"`
	InteractionType string                 `json:"interaction_type" binding:"required"`
	ItemID          string                 `json:"item_id"`
	Metadata        map[string]interface{} `json:"metadata"`
}

func (h *Handler) StartQuiz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	email := currentEmail(c)
	done, err := h.Store.Quizzes.HasCompleted(ctx, email)
	if err != nil {
		storeError(c, err, "", "quiz status")
		return
	}
	if done {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already completed style quiz"})
		return
	}

	if quiz, err := h.Store.Quizzes.Active(ctx, email); err == nil {
		c.JSON(http.StatusOK, quiz)
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		storeError(c, err, "", "active quiz")
		return
	}

	quiz := &models.StyleQuiz{UserID: email, Responses: []models.QuizResponse{}, CreatedAt: time.Now().UTC()}
	if err := h.Store.Quizzes.Create(ctx, quiz); err != nil {
		storeError(c, err, "", "create quiz")
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *Handler) SubmitQuizResponse(c *gin.Context) {
	var req QuizResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !stylequiz.Known(req.QuestionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp := models.QuizResponse{
		ID:         uuid.NewString(),
		UserID:     currentEmail(c),
		QuestionID: req.QuestionID,
		Response:   req.Response,
	}
	if err := h.Store.Quizzes.AddResponse(ctx, resp.UserID, resp); err != nil {
		storeError(c, err, "No active quiz found", "submit quiz response")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CompleteQuiz builds the style profile from the active quiz and closes it.
func (h *Handler) CompleteQuiz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	email := currentEmail(c)
	quiz, err := h.Store.Quizzes.Active(ctx, email)
	if err != nil {
		storeError(c, err, "No active quiz found", "active quiz")
		return
	}
	if len(quiz.Responses) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quiz has no responses"})
		return
	}

	summary, prefs, err := h.Stylist.BuildProfile(ctx, quiz.Responses)
	if err != nil {
		logger.Get().Error("[Handler] build style profile", zap.String("user", email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build style profile"})
		return
	}
	if err := h.Store.Quizzes.MarkCompleted(ctx, quiz.ID.Hex()); err != nil {
		storeError(c, err, "No active quiz found", "complete quiz")
		return
	}

	profile := &models.StyleProfile{UserID: email, StyleSummary: summary, StylePreferences: prefs}
	if err := h.Store.Profiles.Upsert(ctx, profile); err != nil {
		storeError(c, err, "", "save style profile")
		return
	}
	saved, err := h.Store.Profiles.Get(ctx, email)
	if err != nil {
		storeError(c, err, "Style profile not found", "load style profile")
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) QuizStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	email := currentEmail(c)
	done, err := h.Store.Quizzes.HasCompleted(ctx, email)
	if err != nil {
		storeError(c, err, "", "quiz status")
		return
	}
	hasQuiz := done
	if !done {
		_, err := h.Store.Quizzes.Current(ctx, email)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			storeError(c, err, "", "current quiz")
			return
		}
		hasQuiz = err == nil
	}
	c.JSON(http.StatusOK, gin.H{"has_quiz": hasQuiz, "is_completed": done, "can_retake": true})
}

// RetakeQuiz archives every earlier quiz and opens a fresh one.
func (h *Handler) RetakeQuiz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	email := currentEmail(c)
	if err := h.Store.Quizzes.ArchiveAll(ctx, email); err != nil {
		storeError(c, err, "", "archive quizzes")
		return
	}
	quiz := &models.StyleQuiz{UserID: email, Responses: []models.QuizResponse{}, CreatedAt: time.Now().UTC()}
	if err := h.Store.Quizzes.Create(ctx, quiz); err != nil {
		storeError(c, err, "", "create quiz")
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *Handler) QuizQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, stylequiz.Questions())
}

func (h *Handler) CurrentQuiz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	quiz, err := h.Store.Quizzes.Active(ctx, currentEmail(c))
	if err != nil {
		storeError(c, err, "No active quiz found", "active quiz")
		return
	}
	c.JSON(http.StatusOK, quiz)
}

// TrackInteraction records the interaction and refreshes the style profile
// from recent history. A failed refresh keeps the old profile.
func (h *Handler) TrackInteraction(c *gin.Context) {
	var req TrackInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := currentEmail(c)
	if req.UserID != email {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot track interaction for another user"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	interaction := &models.Interaction{
		UserID:          email,
		InteractionType: req.InteractionType,
		ItemID:          req.ItemID,
		Metadata:        req.Metadata,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.Store.Interactions.Add(ctx, interaction); err != nil {
		storeError(c, err, "", "add interaction")
		return
	}

	profile, err := h.Store.Profiles.Get(ctx, email)
	if err != nil {
		storeError(c, err, "Style profile not found", "load style profile")
		return
	}
	recent, err := h.Store.Interactions.Recent(ctx, email, recentInteractions)
	if err != nil {
		storeError(c, err, "", "recent interactions")
		return
	}

	summary, prefs, err := h.Stylist.UpdateProfile(ctx, profile.StyleSummary, recent)
	if err != nil {
		logger.Get().Warn("[Handler] style profile update skipped", zap.String("user", email), zap.Error(err))
		c.JSON(http.StatusOK, profile)
		return
	}
	profile.StyleSummary, profile.StylePreferences = summary, prefs
	if err := h.Store.Profiles.Upsert(ctx, profile); err != nil {
		storeError(c, err, "", "save style profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) Recommendations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	email := currentEmail(c)
	profile, err := h.Store.Profiles.Get(ctx, email)
	if err != nil {
		storeError(c, err, "Style profile not found", "load style profile")
		return
	}
	recent, err := h.Store.Interactions.Recent(ctx, email, recentInteractions)
	if err != nil {
		storeError(c, err, "", "recent interactions")
		return
	}

	recs, err := h.Stylist.Recommend(ctx, profile.StyleSummary, recent)
	if err != nil {
		logger.Get().Warn("[Handler] recommendations unavailable", zap.String("user", email), zap.Error(err))
		recs = []models.Recommendation{}
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

func (h *Handler) GenerateSearchQueries(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	email := currentEmail(c)
	profile, err := h.Store.Profiles.Get(ctx, email)
	if err == nil && profile.StyleSummary == "" {
		err = database.ErrNotFound
	}
	if err != nil {
		storeError(c, err, "Style profile not found", "load style profile")
		return
	}

	queries, err := h.Stylist.ProfileQueries(ctx, profile.StyleSummary, profile.Categories())
	if err != nil {
		logger.Get().Warn("[Handler] search query generation failed", zap.String("user", email), zap.Error(err))
		queries = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"search_queries": queries})
}
