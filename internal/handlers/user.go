package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vault-betting/internal/auth"
	"vault-betting/internal/repository"
	"vault-betting/internal/services"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	authService *services.AuthService
	repo        *repository.Repository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(authService *services.AuthService, repo *repository.Repository) *UserHandler {
	return &UserHandler{
		authService: authService,
		repo:        repo,
	}
}

// GetProfile returns the current user's profile
// GET /api/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "User not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":             user.ID,
			"wallet_address": user.WalletAddress,
			"nickname":       user.Nickname,
			"created_at":     user.CreatedAt,
		},
	})
}

// GetStats returns lifetime wager statistics for a wallet
// GET /api/users/:wallet/stats
func (h *UserHandler) GetStats(c *gin.Context) {
	wallet := c.Param("wallet")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet required"})
		return
	}

	stats, err := h.repo.GetPlayerStats(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve statistics",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// UpdateNickname updates the current user's nickname
// PUT /api/users/me/nickname
func (h *UserHandler) UpdateNickname(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	var req struct {
		Nickname string `json:"nickname" binding:"required,min=3,max=50"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	user, err := h.authService.UpdateNickname(userID, req.Nickname)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}
