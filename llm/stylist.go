package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"openfashion/models"
)

const (
	expertSystem   = "You are a fashion expert analyzing style preferences. Always respond with valid JSON."
	stylistSystem  = "You are a world-class fashion expert and personal stylist. You have deep knowledge of the user's style profile and provide expert-level, personalized advice. Be confident, knowledgeable, and show understanding of their unique style. Always respond with valid JSON."
	queryGenSystem = "You are a fashion search query generator. Always respond with a valid JSON array of strings."
)

const (
	maxRegionQueries = 5
	maxSuggestions   = 8
	maxOptimizedLen  = 50
)

type profileReply struct {
	StyleSummary     string                   `json:"style_summary"`
	StylePreferences []models.StylePreference `json:"style_preferences"`
}

func (r profileReply) validate() error {
	if r.StyleSummary == "" || r.StylePreferences == nil {
		return errors.New("model reply is missing style_summary or style_preferences")
	}
	return nil
}

// BuildProfile turns a completed quiz into a style summary and scored categories.
func (c *Client) BuildProfile(ctx context.Context, responses []models.QuizResponse) (string, []models.StylePreference, error) {
	var lines []string
	for _, r := range responses {
		lines = append(lines, fmt.Sprintf("Q: %s\nA: %s", r.QuestionID, r.Response.String()))
	}
	prompt := fmt.Sprintf(`Based on the following style quiz responses, create a detailed style profile:
%s

Please provide:
1. A summary of their style preferences
2. Key style categories they're interested in
3. Confidence scores for each category

Format the response as JSON with the following structure:
{"style_summary": "string", "style_preferences": [{"category": "string", "confidence_score": float}]}`,
		strings.Join(lines, "\n"))

	return c.profile(ctx, prompt)
}

// UpdateProfile revises a summary in light of recent interactions.
func (c *Client) UpdateProfile(ctx context.Context, summary string, recent []models.Interaction) (string, []models.StylePreference, error) {
	prompt := fmt.Sprintf(`Based on the user's current style profile and recent interactions, update their preferences:

Current Profile:
%s

Recent Interactions:
%s

Please provide an updated style profile as JSON:
{"style_summary": "string", "style_preferences": [{"category": "string", "confidence_score": float}]}`,
		summary, formatInteractions(recent))

	return c.profile(ctx, prompt)
}

func (c *Client) profile(ctx context.Context, prompt string) (string, []models.StylePreference, error) {
	reply, err := c.complete(ctx, completion{system: expertSystem, user: prompt, temperature: 0.7, jsonObject: true})
	if err != nil {
		return "", nil, err
	}
	var out profileReply
	if err := decodeObject(reply, &out); err != nil {
		return "", nil, err
	}
	if err := out.validate(); err != nil {
		return "", nil, err
	}
	return out.StyleSummary, out.StylePreferences, nil
}

// Recommend proposes items for the profile based on recent interactions.
func (c *Client) Recommend(ctx context.Context, summary string, recent []models.Interaction) ([]models.Recommendation, error) {
	prompt := fmt.Sprintf(`Based on the user's style profile and recent interactions, generate personalized recommendations:

Style Profile:
%s

Recent Interactions:
%s

Please provide recommendations in the following JSON format:
{"recommendations": [{"item_type": "string", "description": "string", "reasoning": "string", "confidence_score": float}]}`,
		summary, formatInteractions(recent))

	reply, err := c.complete(ctx, completion{
		system:      "You are a fashion expert providing personalized recommendations. Always respond with valid JSON.",
		user:        prompt,
		temperature: 0.7,
		jsonObject:  true,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Recommendations []models.Recommendation `json:"recommendations"`
	}
	if err := decodeObject(reply, &out); err != nil {
		return nil, err
	}
	if out.Recommendations == nil {
		return nil, errors.New("model reply is missing recommendations")
	}
	return out.Recommendations, nil
}

// ProfileQueries suggests 5 to 10 discovery searches for a profile.
func (c *Client) ProfileQueries(ctx context.Context, summary string, categories []string) ([]string, error) {
	prompt := fmt.Sprintf(`Based on the following style summary and preferences, generate a list of 5-10 search queries related to fashion items or styles that this user might be interested in.
Style Summary: %s
Style Preferences: %s

Please provide the search queries in a JSON array of strings.`,
		summary, strings.Join(categories, ", "))

	reply, err := c.complete(ctx, completion{system: queryGenSystem, user: prompt, temperature: 0.7})
	if err != nil {
		return nil, err
	}
	return decodeStrings(reply)
}

// RegionQueries suggests up to five shopping searches for one detected garment.
func (c *Client) RegionQueries(ctx context.Context, label, color string, candidates []models.Product, profile *models.StyleProfile) ([]string, error) {
	var found []string
	for _, p := range candidates {
		if p.Source != "" {
			found = append(found, fmt.Sprintf("- %s (%s)", p.Title, p.Source))
		} else {
			found = append(found, "- "+p.Title)
		}
	}
	if len(found) == 0 {
		found = append(found, "- none")
	}

	prompt := fmt.Sprintf(`A shopper photographed a %s %s.
Visually similar products already found:
%s
%s
Generate up to %d short Google Shopping queries (under 6 words each) that would find similar items. Include the color. Focus on fit, style, material and design details.
Respond with only a JSON array of strings.`,
		color, label, strings.Join(found, "\n"), profileContext(profile), maxRegionQueries)

	reply, err := c.complete(ctx, completion{system: queryGenSystem, user: prompt, temperature: 0.3, maxTokens: 200})
	if err != nil {
		return nil, err
	}
	queries, err := decodeStrings(reply)
	if err != nil {
		return nil, err
	}
	return capStrings(queries, maxRegionQueries), nil
}

// OptimizeQuery rewrites a natural language request as a shopping query.
// It falls back to the user's own words when the model misbehaves.
func (c *Client) OptimizeQuery(ctx context.Context, query string, profile *models.StyleProfile) string {
	prompt := fmt.Sprintf(`You are a fashion expert who converts natural language fashion queries into optimized Google Shopping search queries.
%s
User Query: "%s"

Guidelines:
1. Keep the query concise (3-8 words)
2. Include specific fashion terms, item types and style descriptors
3. Include gender, color and material if mentioned or implied

Generate only the optimized search query, nothing else:`, profileContext(profile), query)

	reply, err := c.complete(ctx, completion{
		system:      "You are a fashion search optimization expert. Respond with only the optimized search query, no additional text.",
		user:        prompt,
		temperature: 0.3,
		maxTokens:   50,
	})
	if err != nil {
		return query
	}
	optimized := strings.Trim(reply, "\"' \n")
	if optimized == "" || len(optimized) > maxOptimizedLen {
		return query
	}
	return optimized
}

// Suggestions are eight personalised fashion searches for a profile.
func (c *Client) Suggestions(ctx context.Context, profile *models.StyleProfile) ([]string, error) {
	prompt := fmt.Sprintf(`Based on this user's style profile, generate %d personalized fashion search suggestions:
%s
Make them diverse and relevant to their style preferences.
Respond with only a JSON array of strings, no additional text.`, maxSuggestions, profileContext(profile))

	reply, err := c.complete(ctx, completion{
		system:      "You are a fashion expert. Respond with only a JSON array of strings.",
		user:        prompt,
		temperature: 0.7,
		maxTokens:   200,
	})
	if err != nil {
		return nil, err
	}
	out, err := decodeStrings(reply)
	if err != nil {
		return nil, err
	}
	return capStrings(out, maxSuggestions), nil
}

type chatReply struct {
	Message       string   `json:"message"`
	NextQuestions []string `json:"next_questions"`
	Suggestions   []string `json:"suggestions"`
}

const chatReplyFormat = `Respond with a JSON object:
{"message": "your response", "next_questions": ["example user follow-up question"], "suggestions": ["example quick user prompt"]}
Phrase next_questions and suggestions in the first person, as prompts the user might send you.`

// StartChat opens a stylist conversation grounded in the profile.
func (c *Client) StartChat(ctx context.Context, profile *models.StyleProfile) (models.ChatReply, error) {
	prompt := fmt.Sprintf(`%s
Start a conversation that acknowledges their style profile, offers to help them refine or evolve it, and asks 1-2 questions about their current goals. Keep it to 2-3 sentences.
%s`, profileContext(profile), chatReplyFormat)

	return c.chat(ctx, prompt)
}

// Chat answers one user message given the profile and recent turns, oldest first.
func (c *Client) Chat(ctx context.Context, profile *models.StyleProfile, history []models.ChatTurn, message string) (models.ChatReply, error) {
	var turns []string
	for _, t := range history {
		turns = append(turns, fmt.Sprintf("User: %s\nStylist: %s", t.Message, t.Response))
	}
	if len(turns) == 0 {
		turns = append(turns, "No recent history")
	}
	prompt := fmt.Sprintf(`%s
Recent Conversation:
%s

User's Current Message: "%s"

Answer their question with personalized advice that references their profile, then ask a strategic follow-up. Keep it concise.
%s`, profileContext(profile), strings.Join(turns, "\n"), message, chatReplyFormat)

	return c.chat(ctx, prompt)
}

func (c *Client) chat(ctx context.Context, prompt string) (models.ChatReply, error) {
	reply, err := c.complete(ctx, completion{system: stylistSystem, user: prompt, temperature: 0.8, jsonObject: true})
	if err != nil {
		return models.ChatReply{}, err
	}
	var out chatReply
	if err := decodeObject(reply, &out); err != nil {
		return models.ChatReply{}, err
	}
	if out.Message == "" {
		return models.ChatReply{}, errors.New("model reply is missing message")
	}
	return models.ChatReply{
		Response:      out.Message,
		NextQuestions: nonNil(out.NextQuestions),
		Suggestions:   nonNil(out.Suggestions),
	}, nil
}

func profileContext(p *models.StyleProfile) string {
	if p == nil || p.StyleSummary == "" {
		return "User Style Profile: not available\n"
	}
	prefs := "Not specified"
	if cats := p.Categories(); len(cats) > 0 {
		prefs = strings.Join(cats, ", ")
	}
	return fmt.Sprintf("User Style Profile:\n- Style Summary: %s\n- Style Preferences: %s\n", p.StyleSummary, prefs)
}

func formatInteractions(recent []models.Interaction) string {
	if len(recent) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(recent))
	for _, i := range recent {
		lines = append(lines, fmt.Sprintf("Type: %s, Item: %s, Metadata: %v", i.InteractionType, i.ItemID, i.Metadata))
	}
	return strings.Join(lines, "\n")
}

func capStrings(s []string, n int) []string {
	out := make([]string, 0, n)
	for _, v := range s {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
