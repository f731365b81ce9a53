// Package search queries SerpAPI for visual matches and shopping results.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"openfashion/metrics"
	"openfashion/models"

	"github.com/tidwall/gjson"
)

const defaultURL = "https://serpapi.com/search.json"

var ErrNotConfigured = errors.New("SerpAPI key is not set")

// Marketplaces whose visual matches are preferred over generic results.
var preferredSources = []string{"louisvuitton", "grailed", "stockx", "ssense", "goat", "farfetch"}

const visualMatchLimit = 5

// Searcher finds products that look like an image or match a text query.
type Searcher interface {
	VisualMatches(ctx context.Context, imageURL, hint string) ([]models.Product, error)
	Shopping(ctx context.Context, query string, num int) ([]models.Product, error)
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(apiKey string) *Client {
	return &Client{apiKey: apiKey, baseURL: defaultURL, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// VisualMatches runs a Google Lens search. Only the top five matches are
// considered, and marketplace matches win over the rest when any exist.
func (c *Client) VisualMatches(ctx context.Context, imageURL, hint string) ([]models.Product, error) {
	params := url.Values{
		"engine": {"google_lens"},
		"url":    {imageURL},
		"hl":     {"en"},
		"gl":     {"us"},
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		params.Set("text", hint)
	}
	body, err := c.get(ctx, params)
	metrics.ObserveUpstream("serpapi_lens", err)
	if err != nil {
		return nil, err
	}

	matches := gjson.GetBytes(body, "visual_matches").Array()
	if len(matches) > visualMatchLimit {
		matches = matches[:visualMatchLimit]
	}

	var all, preferred []models.Product
	for _, m := range matches {
		p := models.Product{
			Title:     m.Get("title").String(),
			Link:      m.Get("link").String(),
			Price:     lensPrice(m.Get("price")),
			Thumbnail: m.Get("thumbnail").String(),
			Source:    m.Get("source").String(),
		}
		all = append(all, p)
		if isPreferred(p.Source) {
			preferred = append(preferred, p)
		}
	}
	if len(preferred) > 0 {
		return preferred, nil
	}
	if all == nil {
		all = []models.Product{}
	}
	return all, nil
}

// Shopping runs a Google Shopping search for query.
func (c *Client) Shopping(ctx context.Context, query string, num int) ([]models.Product, error) {
	params := url.Values{
		"engine": {"google_shopping"},
		"q":      {query},
		"hl":     {"en"},
		"gl":     {"us"},
		"num":    {strconv.Itoa(num)},
	}
	body, err := c.get(ctx, params)
	metrics.ObserveUpstream("serpapi_shopping", err)
	if err != nil {
		return nil, err
	}

	out := []models.Product{}
	for _, r := range gjson.GetBytes(body, "shopping_results").Array() {
		link := r.Get("link").String()
		if link == "" {
			link = r.Get("product_link").String()
		}
		price := r.Get("price").String()
		if price == "" {
			price = "N/A"
		}
		out = append(out, models.Product{
			Title:     r.Get("title").String(),
			Link:      link,
			Price:     price,
			Thumbnail: r.Get("thumbnail").String(),
			Source:    r.Get("source").String(),
			Rating:    r.Get("rating").String(),
			Reviews:   r.Get("reviews").String(),
		})
		if num > 0 && len(out) == num {
			break
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi %s: status %d", params.Get("engine"), resp.StatusCode)
	}
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return nil, fmt.Errorf("serpapi %s: %s", params.Get("engine"), msg.String())
	}
	return body, nil
}

// lensPrice renders "<currency> <value>", or "N/A" when the match has no price.
func lensPrice(p gjson.Result) string {
	if !p.Exists() {
		return "N/A"
	}
	value := p.Get("extracted_value")
	amount := "N/A"
	if value.Exists() {
		amount = value.Raw
	}
	return strings.TrimSpace(p.Get("currency").String() + " " + amount)
}

func isPreferred(source string) bool {
	source = strings.ToLower(source)
	for _, domain := range preferredSources {
		if strings.Contains(source, domain) {
			return true
		}
	}
	return false
}
