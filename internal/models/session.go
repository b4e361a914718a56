package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is one named conversation between a client and the administrator.
// It is stored in the "chats" table and is never renamed after creation.
type Session struct {
	// ID is the session identifier (UUID).
	ID string `gorm:"type:uuid;primaryKey" json:"id"`
	// ClientName is the free-text display name submitted by the client.
	ClientName string `gorm:"type:text;not null" json:"client_name"`
	// CreatedAt is the moment the client submitted the name.
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	// UpdatedAt moves forward on every new message; the admin list is sorted by it.
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`

	Messages []Message `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName keeps the table name used by the existing frontend.
func (Session) TableName() string { return "chats" }

// BeforeCreate: хук GORM, який генерує UUID, якщо ID ще не встановлено.
func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}
