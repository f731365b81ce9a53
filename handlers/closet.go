package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"openfashion/logger"
	"openfashion/models"
	"openfashion/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *Handler) GetCloset(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, err := h.Store.Closet.ListByUser(ctx, currentEmail(c))
	if err != nil {
		storeError(c, err, "", "list closet")
		return
	}
	c.JSON(http.StatusOK, gin.H{"closet": models.GroupCloset(items)})
}

func (h *Handler) UserCloset(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := h.Store.Users.FindByUsername(ctx, c.Param("username"))
	if err != nil {
		storeError(c, err, "User not found", "closet owner lookup")
		return
	}
	items, err := h.Store.Closet.ListByUser(ctx, user.Email)
	if err != nil {
		storeError(c, err, "", "list closet")
		return
	}
	c.JSON(http.StatusOK, gin.H{"closet": models.GroupCloset(items)})
}

// AddClosetItem takes a multipart form with the item fields and a thumbnail.
func (h *Handler) AddClosetItem(c *gin.Context) {
	item := models.ClosetItem{
		UserID:   currentEmail(c),
		Name:     strings.TrimSpace(c.PostForm("name")),
		Category: strings.TrimSpace(c.PostForm("category")),
		Price:    strings.TrimSpace(c.PostForm("price")),
		Link:     strings.TrimSpace(c.PostForm("link")),
	}
	if item.Name == "" || item.Category == "" || item.Link == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, category and link are required"})
		return
	}
	if item.Price != "" && !validPrice(item.Price) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price format"})
		return
	}
	if tags := c.PostForm("tags"); tags != "" {
		item.Tags = splitTags(tags)
	}

	data, _, ok := readImage(c, "thumbnail")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	url, err := h.Storage.Upload(ctx, data, storage.FolderThumbnails, uuid.NewString())
	if err != nil {
		logger.Get().Error("[Handler] thumbnail upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload thumbnail"})
		return
	}
	item.Thumbnail = url
	item.CreatedAt = time.Now().UTC()

	if err := h.Store.Closet.Add(ctx, &item); err != nil {
		storeError(c, err, "", "add closet item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item added to closet", "item": item})
}

// UpdateClosetItem matches the caller's item by link.
func (h *Handler) UpdateClosetItem(c *gin.Context) {
	var item models.ClosetItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if item.Link == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "link is required"})
		return
	}
	if item.Price != "" && !validPrice(item.Price) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price format"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.Store.Closet.UpdateByLink(ctx, currentEmail(c), item); err != nil {
		storeError(c, err, "Item not found", "update closet item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item updated"})
}

func (h *Handler) DeleteClosetItem(c *gin.Context) {
	link, category := c.Query("link"), c.Query("category")
	if link == "" || category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "link and category are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.Store.Closet.DeleteByLink(ctx, currentEmail(c), link, category); err != nil {
		storeError(c, err, "Item not found", "delete closet item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
