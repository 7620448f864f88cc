package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"wamux/internal/auth"
	"wamux/internal/middleware"
)

type AuthHandler struct {
	TokenConfig auth.TokenConfig
	Limiter     *middleware.RateLimiter
}

type authBody struct {
	Secret string `json:"secret"`
	Client string `json:"client"`
}

// Exchange trades the master secret for a bearer token. Rate limited per IP
// so the secret cannot be brute forced through this endpoint.
func (h *AuthHandler) Exchange(c *gin.Context) {
	if h.Limiter != nil && !h.Limiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	var body authBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(body.Secret), []byte(h.TokenConfig.Secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid secret"})
		return
	}

	client := body.Client
	if client == "" {
		client = "operator"
	}
	token, err := auth.CreateToken(client, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
