package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mdp/qrterminal/v3"

	"wamux/internal/instance"
)

type InstanceHandler struct {
	Manager *instance.Manager
}

type createInstanceBody struct {
	Key        string `json:"key"`
	WebhookURL string `json:"webhookUrl"`
}

func (h *InstanceHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instances": h.Manager.List()})
}

func (h *InstanceHandler) Create(c *gin.Context) {
	var body createInstanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session key is required"})
		return
	}

	inst, err := h.Manager.Create(c.Request.Context(), body.Key, body.WebhookURL)
	if err != nil {
		writeInstanceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":        inst.Key(),
		"state":      inst.State(),
		"webhookUrl": inst.WebhookURL(),
	})
}

func (h *InstanceHandler) Status(c *gin.Context) {
	inst, ok := h.Manager.Get(c.Param("key"))
	if !ok {
		writeInstanceError(c, instance.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":   inst.Key(),
		"state": inst.State(),
	})
}

// QR returns the pending pairing payload. With ?format=terminal the payload
// is rendered as a scannable half-block QR for pasting into a terminal.
func (h *InstanceHandler) QR(c *gin.Context) {
	key := c.Param("key")
	code, err := h.Manager.PairingCode(key)
	if err != nil {
		writeInstanceError(c, err)
		return
	}

	if c.Query("format") == "terminal" {
		var rendered strings.Builder
		qrterminal.GenerateHalfBlock(code, qrterminal.L, &rendered)
		c.String(http.StatusOK, rendered.String())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":     key,
		"pairing": code,
	})
}

func (h *InstanceHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	if err := h.Manager.Delete(c.Request.Context(), key); err != nil {
		writeInstanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "key": key})
}
