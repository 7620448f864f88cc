package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wamux/internal/instance"
	"wamux/internal/model"
)

type MessageHandler struct {
	Manager   *instance.Manager
	UploadDir string
}

type sendTextBody struct {
	Key  string `json:"key"`
	To   string `json:"to"`
	Text string `json:"text"`
}

func (h *MessageHandler) SendText(c *gin.Context) {
	var body sendTextBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Key == "" || body.To == "" || body.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: key, to, text"})
		return
	}

	result, err := h.Manager.SendText(c.Request.Context(), body.Key, body.To, body.Text)
	if err != nil {
		writeInstanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// SendMedia accepts a multipart upload (key, to, caption, file), stages the
// file under the upload dir, classifies it by MIME type and hands it to the
// engine. The staged file is removed once the send completes or fails.
func (h *MessageHandler) SendMedia(c *gin.Context) {
	key := c.PostForm("key")
	to := c.PostForm("to")
	caption := c.PostForm("caption")

	file, err := c.FormFile("file")
	if err != nil || key == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: key, to, file"})
		return
	}

	if err := os.MkdirAll(h.UploadDir, 0o700); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stage upload"})
		return
	}
	staged := filepath.Join(h.UploadDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, staged); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stage upload"})
		return
	}
	defer func() { _ = os.Remove(staged) }()

	kind := model.ClassifyMIME(file.Header.Get("Content-Type"))
	media := model.Media{
		Path:     staged,
		Kind:     kind,
		Caption:  caption,
		FileName: file.Filename,
	}

	result, err := h.Manager.SendMedia(c.Request.Context(), key, to, media)
	if err != nil {
		writeInstanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "kind": kind, "result": result})
}
