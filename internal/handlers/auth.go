package handlers

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"

	"vault-betting/internal/auth"
	"vault-betting/internal/services"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// loginMessage is the message wallets sign to prove key ownership.
const loginMessage = "Sign this message to authenticate with VAULT BETTING"

// WalletLogin authenticates a user by their Solana wallet address and signature.
// POST /auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.WalletAddress) < 32 || len(req.WalletAddress) > 44 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return
	}

	pubKey, err := base58.Decode(req.WalletAddress)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid public key format"})
		return
	}

	// Wallets return the signature as base58 or hex depending on the
	// adapter; accept both.
	sig, err := base58.Decode(req.Signature)
	if err != nil {
		sig, err = hex.DecodeString(req.Signature)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature format"})
			return
		}
	}

	if !ed25519.Verify(pubKey, []byte(loginMessage), sig) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	user, err := h.authService.ProcessWalletLogin(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.WalletAddress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout handles user logout (stateless JWT — client-side only)
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully logged out",
	})
}

// GetMe returns the currently authenticated user's profile
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}
