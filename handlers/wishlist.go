package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"openfashion/database"
	"openfashion/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type AddWishlistRequest struct {
	UserID    string   `json:"user_id" binding:"required"`
	Title     string   `json:"title" binding:"required"`
	Category  string   `json:"category"`
	Price     string   `json:"price"`
	Link      string   `json:"link" binding:"required"`
	Thumbnail string   `json:"thumbnail"`
	Source    string   `json:"source"`
	Tags      []string `json:"tags"`
}

func page(c *gin.Context) (skip, limit int, ok bool) {
	if skip, ok = queryInt(c, "skip", 0, 0, 1<<30); !ok {
		return 0, 0, false
	}
	if limit, ok = queryInt(c, "limit", defaultPageSize, 1, maxPageSize); !ok {
		return 0, 0, false
	}
	return skip, limit, true
}

func (h *Handler) GetWishlist(c *gin.Context) {
	h.listWishlist(c, currentEmail(c))
}

// UserWishlist lists another user's wishlist by owner id (their email).
func (h *Handler) UserWishlist(c *gin.Context) {
	h.listWishlist(c, c.Param("user_id"))
}

func (h *Handler) listWishlist(c *gin.Context, owner string) {
	skip, limit, ok := page(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, err := h.Store.Wishlist.ListByUser(ctx, owner, skip, limit)
	if err != nil {
		storeError(c, err, "", "list wishlist")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) AddWishlistItem(c *gin.Context) {
	var req AddWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID != currentEmail(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot add items for another user"})
		return
	}
	if req.Price != "" && !validPrice(req.Price) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price format"})
		return
	}

	item := models.WishlistItem{
		UserID:    req.UserID,
		Title:     strings.TrimSpace(req.Title),
		Category:  req.Category,
		Price:     req.Price,
		Link:      req.Link,
		Thumbnail: req.Thumbnail,
		Source:    req.Source,
		Tags:      req.Tags,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.Store.Wishlist.Add(ctx, &item); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Item already in wishlist"})
			return
		}
		storeError(c, err, "", "add wishlist item")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteWishlistItem(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.Store.Wishlist.Delete(ctx, c.Param("id"), currentEmail(c)); err != nil {
		storeError(c, err, "Item not found", "delete wishlist item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from wishlist"})
}

func (h *Handler) LikeWishlistItem(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.Store.Wishlist.Like(ctx, c.Param("id")); err != nil {
		storeError(c, err, "Item not found", "like wishlist item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item liked"})
}

// DiscoverWishlist lists everyone's items, most liked first.
func (h *Handler) DiscoverWishlist(c *gin.Context) {
	skip, limit, ok := page(c)
	if !ok {
		return
	}
	filter := models.WishlistFilter{
		Category: c.Query("category"),
		Tags:     c.QueryArray("tags"),
		Skip:     skip,
		Limit:    limit,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, err := h.Store.Wishlist.Discover(ctx, filter)
	if err != nil {
		storeError(c, err, "", "discover wishlist")
		return
	}
	c.JSON(http.StatusOK, items)
}
