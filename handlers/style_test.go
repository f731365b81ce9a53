package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"openfashion/billing"
	"openfashion/handlers"
	"openfashion/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quizStatus struct {
	HasQuiz     bool `json:"has_quiz"`
	IsCompleted bool `json:"is_completed"`
	CanRetake   bool `json:"can_retake"`
}

// completeQuiz answers two questions and builds the caller's profile.
func (e *env) completeQuiz(token string) models.StyleProfile {
	e.t.Helper()
	w := e.json(http.MethodPost, "/api/style/quiz/submit-response", token, gin.H{"question_id": "primary_style", "response": []string{"Minimalist"}})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	w = e.json(http.MethodPost, "/api/style/quiz/submit-response", token, gin.H{"question_id": "comfort_vs_style", "response": 4})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	w = e.json(http.MethodPost, "/api/style/quiz/complete", token, nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.StyleProfile](e.t, w)
}

func TestStyleQuizFlow(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	w := e.json(http.MethodGet, "/api/style/quiz-questions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[[]models.QuizQuestion](t, w))

	w = e.json(http.MethodPost, "/api/style/quiz/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	started := decode[models.StyleQuiz](t, w)

	// Starting again returns the same open quiz.
	w = e.json(http.MethodPost, "/api/style/quiz/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, started.ID, decode[models.StyleQuiz](t, w).ID)

	w = e.json(http.MethodPost, "/api/style/quiz/complete", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Quiz has no responses")

	w = e.json(http.MethodPost, "/api/style/quiz/submit-response", token, gin.H{"question_id": "favourite_planet", "response": "Mars"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid question ID")

	w = e.json(http.MethodPost, "/api/style/quiz/submit-response", token, gin.H{"question_id": "gender", "response": "Female"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.QuizResponse](t, w)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, models.QuizAnswer{"Female"}, resp.Response)

	w = e.json(http.MethodGet, "/api/style/current-quiz", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.StyleQuiz](t, w).Responses, 1)

	profile := e.completeQuiz(token)
	assert.Equal(t, "alice@example.com", profile.UserID)
	assert.Equal(t, "Built from 3 answers", profile.StyleSummary)
	assert.Equal(t, []string{"minimalist"}, profile.Categories())

	w = e.json(http.MethodGet, "/api/style/quiz-status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, quizStatus{HasQuiz: true, IsCompleted: true, CanRetake: true}, decode[quizStatus](t, w))

	w = e.json(http.MethodPost, "/api/style/quiz/start", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "User already completed style quiz")

	w = e.json(http.MethodPost, "/api/style/quiz/complete", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[handlers.TokenResponse](t, w).NeedsQuiz)
}

func TestCompleteQuizKeepsQuizOpenWhenProfileFails(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	w := e.json(http.MethodPost, "/api/style/quiz/submit-response", token, gin.H{"question_id": "gender", "response": "Male"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	e.stylist.err = errors.New("model overloaded")
	w = e.json(http.MethodPost, "/api/style/quiz/complete", token, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	e.stylist.err = nil
	w = e.json(http.MethodPost, "/api/style/quiz/complete", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRetakeQuiz(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")
	e.completeQuiz(token)

	w := e.json(http.MethodPost, "/api/style/quiz/retake", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fresh := decode[models.StyleQuiz](t, w)
	assert.Empty(t, fresh.Responses)
	assert.False(t, fresh.Completed)

	w = e.json(http.MethodGet, "/api/style/current-quiz", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fresh.ID, decode[models.StyleQuiz](t, w).ID)
}

func TestTrackInteractionRefreshesProfile(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	track := gin.H{"user_id": "alice@example.com", "interaction_type": "like", "item_id": "item-1"}
	w := e.json(http.MethodPost, "/api/style/interactions/track", token, track)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Style profile not found")

	w = e.json(http.MethodPost, "/api/style/interactions/track", token, gin.H{"user_id": "bob@example.com", "interaction_type": "like"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	e.completeQuiz(token)

	w = e.json(http.MethodPost, "/api/style/interactions/track", token, track)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.StyleProfile](t, w)
	assert.Equal(t, "Built from 2 answers, updated with 2 interactions", updated.StyleSummary)
	assert.Equal(t, []string{"streetwear"}, updated.Categories())

	// A stylist outage keeps the stored profile.
	e.stylist.err = errors.New("timeout")
	w = e.json(http.MethodPost, "/api/style/interactions/track", token, track)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, updated.StyleSummary, decode[models.StyleProfile](t, w).StyleSummary)

	w = e.json(http.MethodGet, "/api/style/for-you/recommendations", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[map[string][]models.Recommendation](t, w)["recommendations"])

	e.stylist.err = nil
	w = e.json(http.MethodGet, "/api/style/for-you/recommendations", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]models.Recommendation](t, w)["recommendations"], 1)

	w = e.json(http.MethodGet, "/api/style/generate-search-queries", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"linen shirts", "wide leg trousers"}, decode[map[string][]string](t, w)["search_queries"])
}

func TestStyleChat(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	w := e.json(http.MethodGet, "/api/users/chat/style/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello, stylist here", decode[models.ChatReply](t, w).Response)

	w = e.json(http.MethodPost, "/api/users/chat/style", token, gin.H{"message": "What goes with olive chinos?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "About What goes with olive chinos?", decode[models.ChatReply](t, w).Response)
	assert.Empty(t, e.stylist.lastTurn)

	e.stylist.err = errors.New("unavailable")
	w = e.json(http.MethodPost, "/api/users/chat/style", token, gin.H{"message": "And shoes?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[models.ChatReply](t, w).Response, "I'd love to help you with that!")
	require.Len(t, e.stylist.lastTurn, 1)
	assert.Equal(t, "What goes with olive chinos?", e.stylist.lastTurn[0].Message)

	w = e.json(http.MethodPost, "/api/users/chat/style", token, gin.H{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.json(http.MethodGet, "/api/users/chat/style/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[struct {
		Recent []models.ChatTurn `json:"recent_conversations"`
		Total  int               `json:"total_messages"`
	}](t, w)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, "What goes with olive chinos?", summary.Recent[0].Message)
	assert.Equal(t, "And shoes?", summary.Recent[1].Message)
}

func TestFashionSearchQuota(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	w := e.json(http.MethodPost, "/api/fashion/fashion-search", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < billing.FreeWeeklySearches; i++ {
		w = e.json(http.MethodPost, "/api/fashion/fashion-search?query=linen+shirt&num_results=5", token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[handlers.FashionSearchResponse](t, w)
		assert.Equal(t, "linen shirt", resp.OriginalQuery)
		assert.Equal(t, "optimized linen shirt", resp.OptimizedQuery)
		assert.Equal(t, 2, resp.TotalResults)
		assert.Equal(t, billing.FreeWeeklySearches-i-1, resp.SearchLimit.Remaining)
	}

	w = e.json(http.MethodPost, "/api/fashion/fashion-search?query=linen+shirt", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "weekly search limit of 3")

	w = e.json(http.MethodGet, "/api/fashion/fashion-search/limit", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[models.SearchAllowance](t, w).Remaining)

	// The raw shopping route has no quota.
	w = e.json(http.MethodGet, "/api/search/google-shopping?query=boots", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "boots 0")
}

func TestFashionSearchFailureIsNotCounted(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")
	e.search.err = errors.New("upstream 502")

	w := e.json(http.MethodPost, "/api/fashion/fashion-search?query=boots", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[handlers.FashionSearchResponse](t, w)
	assert.Empty(t, resp.Results)
	assert.Equal(t, billing.FreeWeeklySearches, resp.SearchLimit.Remaining)
}

func TestSearchSuggestions(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	w := e.json(http.MethodGet, "/api/fashion/fashion-search/suggestions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string]any](t, w)["suggestions"], 8)

	e.completeQuiz(token)
	w = e.json(http.MethodGet, "/api/fashion/fashion-search/suggestions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"tailored blazers"}, decode[map[string]any](t, w)["suggestions"])
}
