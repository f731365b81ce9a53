// Package llm talks to the OpenAI chat completions API and turns its
// JSON replies into style profiles, recommendations and search queries.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"openfashion/metrics"
)

const openaiURL = "https://api.openai.com/v1/chat/completions"

var (
	ErrNotConfigured = errors.New("OpenAI API key is not set")
	ErrEmptyReply    = errors.New("model returned no choices")
)

type OpenAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Choice struct {
	Message Message `json:"message"`
}

type OpenAIResponse struct {
	Choices []Choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func New(apiKey, model string) *Client {
	return &Client{apiKey: apiKey, model: model, baseURL: openaiURL, http: &http.Client{Timeout: 60 * time.Second}}
}

func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type completion struct {
	system      string
	user        string
	temperature float64
	maxTokens   int
	jsonObject  bool
}

func (c *Client) complete(ctx context.Context, in completion) (string, error) {
	out, err := c.do(ctx, in)
	metrics.ObserveUpstream("openai", err)
	return out, err
}

func (c *Client) do(ctx context.Context, in completion) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	reqBody := OpenAIRequest{
		Model:       c.model,
		Temperature: in.temperature,
		MaxTokens:   in.maxTokens,
		Messages: []Message{
			{Role: "system", Content: in.system},
			{Role: "user", Content: in.user},
		},
	}
	if in.jsonObject {
		reqBody.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var openaiResp OpenAIResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", fmt.Errorf("openai status %d: %w", resp.StatusCode, err)
	}
	if openaiResp.Error != nil {
		return "", fmt.Errorf("openai: %s", openaiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if len(openaiResp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(openaiResp.Choices[0].Message.Content), nil
}

// decodeJSON unmarshals a reply that may be wrapped in a markdown fence or
// surrounded by prose, using the outermost open/close pair.
func decodeJSON(reply string, open, close byte, v interface{}) error {
	start := strings.IndexByte(reply, open)
	end := strings.LastIndexByte(reply, close)
	if start < 0 || end < start {
		return fmt.Errorf("no JSON %c...%c in model reply", open, close)
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), v); err != nil {
		return fmt.Errorf("invalid JSON from model: %w", err)
	}
	return nil
}

func decodeObject(reply string, v interface{}) error {
	return decodeJSON(reply, '{', '}', v)
}

func decodeStrings(reply string) ([]string, error) {
	var out []string
	if err := decodeJSON(reply, '[', ']', &out); err != nil {
		return nil, err
	}
	return out, nil
}
