package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"wamux/internal/auth"
	"wamux/internal/handler"
	"wamux/internal/hub"
	"wamux/internal/instance"
	"wamux/internal/middleware"
)

type Deps struct {
	Manager     *instance.Manager
	Hub         *hub.Hub
	TokenConfig auth.TokenConfig
	AuthEnabled bool
	UploadDir   string
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	if deps.AuthEnabled {
		authRequestLimiter := middleware.NewRateLimiter(10, time.Minute)
		authHandler := &handler.AuthHandler{TokenConfig: deps.TokenConfig, Limiter: authRequestLimiter}
		r.POST("/v1/auth", authHandler.Exchange)
	}

	protected := r.Group("/v1")
	if deps.AuthEnabled {
		protected.Use(middleware.RequireAuth(deps.TokenConfig))
	}

	createLimiter := middleware.NewRateLimiter(30, time.Minute)
	instanceHandler := &handler.InstanceHandler{Manager: deps.Manager}
	protected.GET("/instances", instanceHandler.List)
	protected.POST("/instances", middleware.RateLimitMiddleware(createLimiter), instanceHandler.Create)
	protected.GET("/instances/:key", instanceHandler.Status)
	protected.GET("/instances/:key/qr", instanceHandler.QR)
	protected.DELETE("/instances/:key", instanceHandler.Delete)

	messageHandler := &handler.MessageHandler{Manager: deps.Manager, UploadDir: deps.UploadDir}
	protected.POST("/messages/text", messageHandler.SendText)
	protected.POST("/messages/media", messageHandler.SendMedia)

	wsHandler := &handler.WebSocketHandler{
		Hub:         deps.Hub,
		Manager:     deps.Manager,
		TokenConfig: deps.TokenConfig,
		AuthEnabled: deps.AuthEnabled,
	}
	r.GET("/ws", wsHandler.Serve)

	return r
}
