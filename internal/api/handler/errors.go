package handler

import (
	"errors"
	"net/http"

	"livechat/backend/internal/chat"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errInternal = errors.New("internal error")

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	var upErr *chat.UploadError
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, chat.ErrEmptyName),
		errors.Is(err, chat.ErrNameTooLong),
		errors.Is(err, chat.ErrEmptyContent),
		errors.Is(err, chat.ErrInvalidSender),
		errors.Is(err, chat.ErrContentTooLong):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrSessionNotFound),
		errors.Is(err, chat.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, chat.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &upErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicError hides server-side failures from clients.
func publicError(err error) error {
	var upErr *chat.UploadError
	switch status := statusOf(err); {
	case status == http.StatusInternalServerError:
		return errInternal
	case errors.As(err, &upErr):
		return errors.New("upload failed")
	case status == http.StatusRequestEntityTooLarge:
		return chat.ErrTooLarge
	}
	return err
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": publicError(err).Error()})
}
