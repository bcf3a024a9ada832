package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware rejects requests without a valid bearer token and stores
// the authenticated wallet in the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			c.Abort()
			return
		}

		claims, err := ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("wallet_address", claims.WalletAddress)

		c.Next()
	}
}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// GetWalletAddress retrieves the authenticated wallet from the context.
func GetWalletAddress(c *gin.Context) (string, bool) {
	v, exists := c.Get("wallet_address")
	if !exists {
		return "", false
	}
	addr, ok := v.(string)
	return addr, ok
}
