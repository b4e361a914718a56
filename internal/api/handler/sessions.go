package handler

import (
	"net/http"

	"livechat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createSessionRequest struct {
	Name string `json:"name"`
}

type createSessionResponse struct {
	Session *models.Session `json:"session"`
	Token   string          `json:"token"`
}

// multipartOverhead is allowed on top of the file size limit for headers and
// boundaries.
const multipartOverhead = 1 << 20

// CreateSession handles POST /api/sessions, the name gate of the client view.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.Chat.Bootstrap(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, err := h.Tokens.Issue(*session)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, createSessionResponse{Session: session, Token: token})
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.Chat.Session(c.Request.Context(), sessionClaims(c).SessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) ListMessages(c *gin.Context) {
	h.listMessages(c, sessionClaims(c).SessionID)
}

func (h *Handler) PostMessage(c *gin.Context) {
	h.postMessage(c, sessionClaims(c).SessionID, models.SenderClient)
}

func (h *Handler) Upload(c *gin.Context) {
	h.upload(c, sessionClaims(c).SessionID, models.SenderClient)
}

// AdminListSessions returns every session, most recently active first.
func (h *Handler) AdminListSessions(c *gin.Context) {
	sessions, err := h.Chat.Sessions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) AdminListMessages(c *gin.Context) {
	h.listMessages(c, c.Param("id"))
}

func (h *Handler) AdminPostMessage(c *gin.Context) {
	h.postMessage(c, c.Param("id"), models.SenderAdmin)
}

func (h *Handler) AdminUpload(c *gin.Context) {
	h.upload(c, c.Param("id"), models.SenderAdmin)
}

func (h *Handler) AdminDeleteSession(c *gin.Context) {
	if err := h.Chat.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminDeleteMessage(c *gin.Context) {
	if err := h.Chat.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listMessages(c *gin.Context, sessionID string) {
	msgs, err := h.Chat.History(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) postMessage(c *gin.Context, sessionID string, sender models.Sender) {
	var req models.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	msg, err := h.Chat.Send(c.Request.Context(), sessionID, sender, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) upload(c *gin.Context, sessionID string, sender models.Sender) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if statusOf(err) == http.StatusRequestEntityTooLarge {
			h.fail(c, err)
			return
		}
		h.logger.Debug("invalid upload form", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	msg, err := h.Chat.Upload(c.Request.Context(), sessionID, sender, header.Filename, file)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
