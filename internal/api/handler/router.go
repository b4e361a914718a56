package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterOptions struct {
	CORSOrigins []string
	// FilesDir is served under /files when set.
	FilesDir string
}

// NewRouter wires middleware and routes.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(zapLoggerMiddleware(h.logger), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(opts.CORSOrigins) == 0 || (len(opts.CORSOrigins) == 1 && opts.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.CORSOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", adminKeyHeader}
	r.Use(cors.New(corsCfg))

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	if opts.FilesDir != "" {
		r.Static("/files", opts.FilesDir)
	}

	api := r.Group("/api")
	api.POST("/sessions", h.CreateSession)

	client := api.Group("", h.RequireSession())
	client.GET("/session", h.GetSession)
	client.GET("/messages", h.ListMessages)
	client.POST("/messages", h.PostMessage)
	client.POST("/uploads", h.Upload)
	r.GET("/ws", h.RequireSession(), h.ServeWebSocket)

	admin := api.Group("/admin", h.RequireAdmin())
	admin.GET("/sessions", h.AdminListSessions)
	admin.GET("/sessions/:id/messages", h.AdminListMessages)
	admin.POST("/sessions/:id/messages", h.AdminPostMessage)
	admin.POST("/sessions/:id/uploads", h.AdminUpload)
	admin.DELETE("/sessions/:id", h.AdminDeleteSession)
	admin.DELETE("/messages/:id", h.AdminDeleteMessage)
	admin.GET("/ws", h.ServeAdminWebSocket)

	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Ready(c *gin.Context) {
	if err := h.Chat.Ready(c.Request.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "clients": h.Hub.ClientCount()})
}
