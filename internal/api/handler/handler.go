package handler

import (
	"context"
	"io"

	"livechat/backend/internal/auth"
	"livechat/backend/internal/chathub"
	"livechat/backend/internal/models"

	"go.uber.org/zap"
)

// ChatService is the chat.Service surface used by the HTTP layer.
type ChatService interface {
	Bootstrap(ctx context.Context, name string) (*models.Session, error)
	Session(ctx context.Context, id string) (*models.Session, error)
	Sessions(ctx context.Context) ([]models.Session, error)
	History(ctx context.Context, sessionID string) ([]models.Message, error)
	Send(ctx context.Context, sessionID string, sender models.Sender, content string) (*models.Message, error)
	Upload(ctx context.Context, sessionID string, sender models.Sender, filename string, r io.Reader) (*models.Message, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) error
	Ready(ctx context.Context) error
}

// Handler holds the dependencies of every route.
type Handler struct {
	Hub      *chathub.ManagerService
	Chat     ChatService
	Tokens   *auth.TokenService
	AdminKey *auth.AdminKey

	// MaxUploadBytes bounds multipart bodies; zero disables the limit.
	MaxUploadBytes int64

	logger *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, chat ChatService, tokens *auth.TokenService, adminKey *auth.AdminKey, maxUpload int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Hub:            hub,
		Chat:           chat,
		Tokens:         tokens,
		AdminKey:       adminKey,
		MaxUploadBytes: maxUpload,
		logger:         logger,
	}
}
