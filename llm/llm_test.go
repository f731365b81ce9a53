package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"openfashion/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOpenAI answers every completion with content and records the request.
func stubOpenAI(t *testing.T, content string, seen *OpenAIRequest) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		_ = json.NewEncoder(w).Encode(OpenAIResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}}})
	}))
	t.Cleanup(srv.Close)
	return New("key", "gpt-test").WithBaseURL(srv.URL)
}

func TestBuildProfile(t *testing.T) {
	var seen OpenAIRequest
	c := stubOpenAI(t, `{"style_summary":"Relaxed streetwear","style_preferences":[{"category":"streetwear","confidence_score":0.9}]}`, &seen)

	summary, prefs, err := c.BuildProfile(context.Background(), []models.QuizResponse{
		{QuestionID: "primary_style", Response: models.QuizAnswer{"Streetwear"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Relaxed streetwear", summary)
	assert.Equal(t, []models.StylePreference{{Category: "streetwear", ConfidenceScore: 0.9}}, prefs)

	assert.Equal(t, "gpt-test", seen.Model)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
	assert.Contains(t, seen.Messages[1].Content, "Q: primary_style\nA: Streetwear")
}

func TestBuildProfileRejectsIncompleteReply(t *testing.T) {
	c := stubOpenAI(t, `{"style_summary":"x"}`, nil)
	_, _, err := c.BuildProfile(context.Background(), nil)
	assert.Error(t, err)
}

func TestRegionQueriesCapsAtFive(t *testing.T) {
	c := stubOpenAI(t, "```json\n[\"a\",\"b\",\"\",\"c\",\"d\",\"e\",\"f\",\"g\"]\n```", nil)

	got, err := c.RegionQueries(context.Background(), "Shirt", "red", []models.Product{{Title: "Tee", Source: "Grailed"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestOptimizeQueryFallsBack(t *testing.T) {
	c := stubOpenAI(t, `"women's summer dress"`, nil)
	assert.Equal(t, "women's summer dress", c.OptimizeQuery(context.Background(), "I want a summer dress", nil))

	long := stubOpenAI(t, "this reply is far too long to be a shopping query and should be ignored", nil)
	assert.Equal(t, "summer dress", long.OptimizeQuery(context.Background(), "summer dress", nil))

	offline := New("", "gpt-test")
	assert.Equal(t, "summer dress", offline.OptimizeQuery(context.Background(), "summer dress", nil))
}

func TestChatMapsMessageToResponse(t *testing.T) {
	c := stubOpenAI(t, `{"message":"Try wide-leg trousers.","next_questions":["What shoes?"]}`, nil)

	reply, err := c.Chat(context.Background(), &models.StyleProfile{StyleSummary: "minimal"}, nil, "What pants?")
	require.NoError(t, err)
	assert.Equal(t, "Try wide-leg trousers.", reply.Response)
	assert.Equal(t, []string{"What shoes?"}, reply.NextQuestions)
	assert.Equal(t, []string{}, reply.Suggestions)
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	_, err := New("key", "m").WithBaseURL(srv.URL).ProfileQueries(context.Background(), "s", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
}
