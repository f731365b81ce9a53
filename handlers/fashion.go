package handlers

import (
	"context"
	"net/http"
	"strings"

	"openfashion/billing"
	"openfashion/logger"
	"openfashion/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultSearchResults = 10
	maxSearchResults     = 20
)

var defaultSuggestions = []string{
	"summer dresses",
	"streetwear hoodies",
	"vintage denim",
	"formal shoes",
	"casual sneakers",
	"oversized sweaters",
	"minimalist tops",
	"pastel colored clothing",
}

type FashionSearchResponse struct {
	OriginalQuery  string                 `json:"original_query"`
	OptimizedQuery string                 `json:"optimized_query"`
	Results        []models.Product       `json:"results"`
	TotalResults   int                    `json:"total_results"`
	SearchLimit    models.SearchAllowance `json:"search_limit"`
}

// FashionSearch rewrites a natural language request with the stylist and
// runs it against shopping search. Free users get a weekly allowance.
func (h *Handler) FashionSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	num, ok := queryInt(c, "num_results", defaultSearchResults, 1, maxSearchResults)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	email := currentEmail(c)
	allowance, err := h.Quota.CheckSearch(ctx, email)
	if err != nil {
		storeError(c, err, "User not found", "search quota")
		return
	}
	if allowance.Limit >= 0 && allowance.Remaining <= 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": billing.SearchLimitMessage})
		return
	}

	optimized := h.Stylist.OptimizeQuery(ctx, query, h.profileOrNil(ctx, email))
	results, err := h.Search.Shopping(ctx, optimized, num)
	if err != nil {
		logger.Get().Warn("[Handler] shopping search failed", zap.String("query", optimized), zap.Error(err))
		results = []models.Product{}
	} else {
		if err := h.Quota.RecordSearch(ctx, email, allowance); err != nil {
			logger.Get().Warn("[Handler] search not counted", zap.String("user", email), zap.Error(err))
		} else if allowance.Limit >= 0 {
			allowance.Used++
			allowance.Remaining--
		}
	}

	c.JSON(http.StatusOK, FashionSearchResponse{
		OriginalQuery:  query,
		OptimizedQuery: optimized,
		Results:        results,
		TotalResults:   len(results),
		SearchLimit:    allowance,
	})
}

func (h *Handler) SearchSuggestions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	email := currentEmail(c)
	allowance, err := h.Quota.CheckSearch(ctx, email)
	if err != nil {
		storeError(c, err, "User not found", "search quota")
		return
	}

	suggestions := defaultSuggestions
	if profile := h.profileOrNil(ctx, email); profile != nil && profile.StyleSummary != "" {
		if suggestions, err = h.Stylist.Suggestions(ctx, profile); err != nil {
			logger.Get().Warn("[Handler] suggestions unavailable", zap.String("user", email), zap.Error(err))
			suggestions = []string{}
		}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions, "search_limit": allowance})
}

func (h *Handler) SearchLimit(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	allowance, err := h.Quota.CheckSearch(ctx, currentEmail(c))
	if err != nil {
		storeError(c, err, "User not found", "search quota")
		return
	}
	c.JSON(http.StatusOK, allowance)
}

// GoogleShopping is the raw shopping search without query rewriting or quota.
func (h *Handler) GoogleShopping(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	num, ok := queryInt(c, "num_results", defaultSearchResults, 1, maxSearchResults)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	results, err := h.Search.Shopping(ctx, query, num)
	if err != nil {
		logger.Get().Warn("[Handler] shopping search failed", zap.String("query", query), zap.Error(err))
		results = []models.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}
