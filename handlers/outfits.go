package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"openfashion/database"
	"openfashion/logger"
	"openfashion/models"
	"openfashion/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ComponentsRequest struct {
	Components []models.OutfitComponent `json:"components"`
}

// CreateOutfit takes a multipart form: image, caption and components as a JSON array.
func (h *Handler) CreateOutfit(c *gin.Context) {
	var components []models.OutfitComponent
	if raw := c.PostForm("components"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &components); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid components JSON"})
			return
		}
	}

	data, _, ok := readImage(c, "image")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	user, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	if !h.checkComponents(ctx, c, user.Email, components) {
		return
	}

	url, err := h.Storage.Upload(ctx, data, storage.FolderOutfits, uuid.NewString())
	if err != nil {
		logger.Get().Error("[Handler] outfit upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload image"})
		return
	}

	now := time.Now().UTC()
	post := &models.OutfitPost{
		UserID:     user.Email,
		Username:   user.Username,
		ImageURL:   url,
		Caption:    strings.TrimSpace(c.PostForm("caption")),
		Components: components,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Store.Outfits.Create(ctx, post); err != nil {
		storeError(c, err, "", "create outfit")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) GetOutfit(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := h.Store.Outfits.Get(ctx, c.Param("id"))
	if err != nil {
		storeError(c, err, "Outfit not found", "get outfit")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) UserOutfits(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := h.Store.Users.FindByUsername(ctx, c.Param("username"))
	if err != nil {
		storeError(c, err, "User not found", "outfit owner lookup")
		return
	}
	posts, err := h.Store.Outfits.ListByUser(ctx, user.Email)
	if err != nil {
		storeError(c, err, "", "list outfits")
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) ReplaceOutfitComponents(c *gin.Context) {
	var req ComponentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, ok := h.ownedOutfit(ctx, c)
	if !ok || !h.checkComponents(ctx, c, post.UserID, req.Components) {
		return
	}
	if err := h.Store.Outfits.ReplaceComponents(ctx, post.ID.Hex(), req.Components); err != nil {
		storeError(c, err, "Outfit not found", "replace components")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Components updated"})
}

func (h *Handler) AddOutfitComponent(c *gin.Context) {
	var component models.OutfitComponent
	if err := c.ShouldBindJSON(&component); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, ok := h.ownedOutfit(ctx, c)
	if !ok || !h.checkComponents(ctx, c, post.UserID, []models.OutfitComponent{component}) {
		return
	}
	if err := h.Store.Outfits.AppendComponent(ctx, post.ID.Hex(), component); err != nil {
		storeError(c, err, "Outfit not found", "append component")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Component added"})
}

func (h *Handler) DeleteOutfit(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, ok := h.ownedOutfit(ctx, c)
	if !ok {
		return
	}
	if err := h.Store.Outfits.Delete(ctx, post.ID.Hex()); err != nil {
		storeError(c, err, "Outfit not found", "delete outfit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Outfit deleted"})
}

func (h *Handler) ownedOutfit(ctx context.Context, c *gin.Context) (*models.OutfitPost, bool) {
	post, err := h.Store.Outfits.Get(ctx, c.Param("id"))
	if err != nil {
		storeError(c, err, "Outfit not found", "get outfit")
		return nil, false
	}
	if post.UserID != currentEmail(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to modify this outfit"})
		return nil, false
	}
	return post, true
}

// checkComponents requires a name on every component and that linked
// closet items belong to owner.
func (h *Handler) checkComponents(ctx context.Context, c *gin.Context, owner string, components []models.OutfitComponent) bool {
	for _, comp := range components {
		if strings.TrimSpace(comp.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Every component needs a name"})
			return false
		}
		if comp.ClosetItemID == "" {
			continue
		}
		item, err := h.Store.Closet.Get(ctx, comp.ClosetItemID)
		if errors.Is(err, database.ErrNotFound) || (err == nil && item.UserID != owner) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown closet item " + comp.ClosetItemID})
			return false
		}
		if err != nil {
			storeError(c, err, "", "closet item lookup")
			return false
		}
	}
	return true
}
