package handlers

import (
	"context"
	"net/http"
	"strings"

	"openfashion/models"

	"github.com/gin-gonic/gin"
)

const userSearchLimit = 20

func (h *Handler) GetUser(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := h.Store.Users.FindByUsername(ctx, c.Param("username"))
	if err != nil {
		storeError(c, err, "User not found", "get user")
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := h.Store.Users.UpdateProfile(ctx, currentEmail(c), req)
	if err != nil {
		storeError(c, err, "User not found", "update profile")
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *Handler) Follow(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	me, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	target, err := h.Store.Users.FindByUsername(ctx, c.Param("username"))
	if err != nil {
		storeError(c, err, "User not found", "follow lookup")
		return
	}
	if target.Email == me.Email {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot follow yourself"})
		return
	}
	for _, name := range me.Following {
		if name == target.Username {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Already following"})
			return
		}
	}

	if err := h.Store.Users.Follow(ctx, me.Username, target.Username); err != nil {
		storeError(c, err, "User not found", "follow")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Now following " + target.Username})
}

func (h *Handler) Unfollow(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	me, ok := h.currentUser(ctx, c)
	if !ok {
		return
	}
	target, err := h.Store.Users.FindByUsername(ctx, c.Param("username"))
	if err != nil {
		storeError(c, err, "User not found", "unfollow lookup")
		return
	}
	if err := h.Store.Users.Unfollow(ctx, me.Username, target.Username); err != nil {
		storeError(c, err, "User not found", "unfollow")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed " + target.Username})
}

func (h *Handler) SearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	users, err := h.Store.Users.Search(ctx, query, userSearchLimit)
	if err != nil {
		storeError(c, err, "", "search users")
		return
	}
	out := make([]models.Profile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	c.JSON(http.StatusOK, out)
}
