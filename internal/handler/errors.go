package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wamux/internal/instance"
)

// writeInstanceError maps Manager caller errors to HTTP responses. Anything
// unmatched is an engine or initialization failure surfaced as a 500.
func writeInstanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, instance.ErrInvalidKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session key"})
	case errors.Is(err, instance.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Session key already exists"})
	case errors.Is(err, instance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, instance.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not connected"})
	case errors.Is(err, instance.ErrNotPairing):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not awaiting pairing"})
	case errors.Is(err, instance.ErrInitFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session initialization failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
