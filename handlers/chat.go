package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"openfashion/logger"
	"openfashion/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const chatHistory = 10

type ChatRequest struct {
	Message string                 `json:"message" binding:"required"`
	Context map[string]interface{} `json:"context"`
}

var (
	fallbackGreeting = models.ChatReply{
		Response: "I'm your personal fashion expert! I can see your style profile and I'm here to help you elevate your look. What's your biggest style goal right now?",
		NextQuestions: []string{
			"What's your biggest style goal?",
			"How would you like to evolve your current style?",
		},
		Suggestions: []string{
			"Get personalized outfit recommendations",
			"Explore style evolution strategies",
		},
	}
	fallbackAnswer = models.ChatReply{
		Response:      "I'd love to help you with that! Based on your style profile, I can provide some expert recommendations. What specific aspect of your style would you like to improve?",
		NextQuestions: []string{"What specific style area would you like to focus on?"},
		Suggestions:   []string{"Get personalized recommendations"},
	}
)

func (h *Handler) StartChat(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	email := currentEmail(c)
	reply, err := h.Stylist.StartChat(ctx, h.profileOrNil(ctx, email))
	if err != nil {
		logger.Get().Warn("[Handler] chat start fell back", zap.String("user", email), zap.Error(err))
		reply = fallbackGreeting
	}

	h.logChat(ctx, &models.Interaction{
		UserID:          email,
		InteractionType: models.InteractionChatStart,
		Metadata: map[string]interface{}{
			"message":         reply.Response,
			"questions_asked": reply.NextQuestions,
		},
	})
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) ChatMessage(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	email := currentEmail(c)
	history, err := h.chatTurns(ctx, email)
	if err != nil {
		storeError(c, err, "", "chat history")
		return
	}

	reply, err := h.Stylist.Chat(ctx, h.profileOrNil(ctx, email), history, message)
	if err != nil {
		logger.Get().Warn("[Handler] chat reply fell back", zap.String("user", email), zap.Error(err))
		reply = fallbackAnswer
	}

	h.logChat(ctx, &models.Interaction{
		UserID:          email,
		InteractionType: models.InteractionChat,
		Metadata: map[string]interface{}{
			"user_message": message,
			"bot_response": reply.Response,
			"context":      req.Context,
		},
	})
	c.JSON(http.StatusOK, reply)
}

// ChatProfile summarises what the stylist knows: the stored profile and the
// recent conversation.
func (h *Handler) ChatProfile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	email := currentEmail(c)
	history, err := h.chatTurns(ctx, email)
	if err != nil {
		storeError(c, err, "", "chat history")
		return
	}

	var existing interface{} = gin.H{}
	if profile := h.profileOrNil(ctx, email); profile != nil {
		existing = profile
	}
	c.JSON(http.StatusOK, gin.H{
		"existing_profile":     existing,
		"recent_conversations": history,
		"total_messages":       len(history),
	})
}

// chatTurns returns recent chat exchanges, oldest first.
func (h *Handler) chatTurns(ctx context.Context, email string) ([]models.ChatTurn, error) {
	recent, err := h.Store.Interactions.RecentOfType(ctx, email, models.InteractionChat, chatHistory)
	if err != nil {
		return nil, err
	}
	turns := make([]models.ChatTurn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		turns = append(turns, models.ChatTurn{
			Message:   metaString(recent[i].Metadata, "user_message"),
			Response:  metaString(recent[i].Metadata, "bot_response"),
			CreatedAt: recent[i].CreatedAt,
		})
	}
	return turns, nil
}

func (h *Handler) logChat(ctx context.Context, interaction *models.Interaction) {
	interaction.CreatedAt = time.Now().UTC()
	if err := h.Store.Interactions.Add(ctx, interaction); err != nil {
		logger.Get().Warn("[Handler] chat interaction not logged", zap.String("user", interaction.UserID), zap.Error(err))
	}
}

func metaString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
