// Package storage persists sessions and messages in PostgreSQL through gorm.
package storage

import (
	"context"
	"errors"
	"fmt"

	"livechat/backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when the addressed session or message does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is everything the chat service needs from the database.
type Storage interface {
	CreateSession(ctx context.Context, clientName string) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	DeleteSession(ctx context.Context, id string) (*models.Session, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
	DeleteMessage(ctx context.Context, id string) (*models.Message, error)

	Ping(ctx context.Context) error
}

type Service struct {
	DB     *gorm.DB
	logger *zap.Logger
}

// Open connects gorm to PostgreSQL. Constraint violations are translated to
// gorm's sentinel errors so callers can match them with errors.Is.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{DB: db, logger: logger}
}

// validID rejects ids that would make postgres fail the uuid cast.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CreateSession inserts one chats row for the given display name.
func (s *Service) CreateSession(ctx context.Context, clientName string) (*models.Session, error) {
	session := &models.Session{ClientName: clientName}
	if err := s.DB.WithContext(ctx).Create(session).Error; err != nil {
		s.logger.Error("create session failed", zap.Error(err))
		return nil, err
	}
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var session models.Session
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("get session failed", zap.String("chat_id", id), zap.Error(err))
		return nil, err
	}
	return &session, nil
}

// ListSessions returns every session, most recently active first.
func (s *Service) ListSessions(ctx context.Context) ([]models.Session, error) {
	sessions := []models.Session{}
	if err := s.DB.WithContext(ctx).Order("updated_at desc").Find(&sessions).Error; err != nil {
		s.logger.Error("list sessions failed", zap.Error(err))
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes the session and all of its messages in one
// transaction and returns the deleted row.
func (s *Service) DeleteSession(ctx context.Context, id string) (*models.Session, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var session models.Session
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&session).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("delete session failed", zap.String("chat_id", id), zap.Error(err))
		return nil, err
	}
	return &session, nil
}

// SaveMessage inserts the message and moves the session's updated_at to the
// message time. msg.ID and msg.CreatedAt are filled in.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if !validID(msg.SessionID) {
		return ErrNotFound
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Session{}).
			Where("id = ?", msg.SessionID).
			Update("updated_at", msg.CreatedAt).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrNotFound
	}
	if err != nil {
		s.logger.Error("save message failed", zap.String("chat_id", msg.SessionID), zap.Error(err))
		return err
	}
	return nil
}

// ListMessages returns the history of a session in display order.
func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	messages := []models.Message{}
	if !validID(sessionID) {
		return messages, nil
	}
	err := s.DB.WithContext(ctx).
		Where("chat_id = ?", sessionID).
		Order("created_at asc, id asc").
		Find(&messages).Error
	if err != nil {
		s.logger.Error("list messages failed", zap.String("chat_id", sessionID), zap.Error(err))
		return nil, err
	}
	return messages, nil
}

// DeleteMessage removes a single message and returns it.
func (s *Service) DeleteMessage(ctx context.Context, id string) (*models.Message, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var msg models.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&msg).Error; err != nil {
			return err
		}
		return tx.Delete(&msg).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("delete message failed", zap.String("message_id", id), zap.Error(err))
		return nil, err
	}
	return &msg, nil
}

// Ping checks that the database answers.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
