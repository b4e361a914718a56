package handler

import (
	"net/http"

	"livechat/backend/internal/chathub"
	"livechat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the credential, not by the browser origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket mirrors the caller's session: a snapshot frame with the
// history, then every later change of that session.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	sessionID := sessionClaims(c).SessionID
	if _, err := h.Chat.Session(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, sessionID, models.SenderClient, h.Chat, h.logger)
	client.Redact = publicError

	// Register before loading history so no change falls between the two.
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	history, err := h.Chat.History(c.Request.Context(), sessionID)
	if err == nil {
		err = client.Prime(history)
	}
	if err != nil {
		h.logger.Warn("websocket snapshot failed", zap.String("session_id", sessionID), zap.Error(err))
		conn.WriteJSON(models.ErrorEvent(publicError(err)))
		h.Hub.Unregister(client)
		conn.Close()
		return
	}
	client.Run()
}

// ServeAdminWebSocket streams the changes of every session to the dashboard.
func (h *Handler) ServeAdminWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, "", models.SenderAdmin, h.Chat, h.logger)
	client.Redact = publicError
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
