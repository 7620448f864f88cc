package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wamux/internal/auth"
)

const clientContextKey = "client"

func ClientFromContext(c *gin.Context) (string, bool) {
	client, ok := c.Get(clientContextKey)
	if !ok {
		return "", false
	}
	value, ok := client.(string)
	return value, ok && value != ""
}

// RequireAuth verifies a Bearer token minted from the master secret. Routers
// skip this middleware entirely when auth is disabled.
func RequireAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		claims, err := auth.VerifyToken(parts[1], cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		c.Set(clientContextKey, claims.Client)
		c.Next()
	}
}
