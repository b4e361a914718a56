package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sender is the role that wrote a message.
type Sender string

const (
	SenderClient Sender = "client"
	SenderAdmin  Sender = "admin"
)

// Valid reports whether s is one of the two known roles.
func (s Sender) Valid() bool {
	return s == SenderClient || s == SenderAdmin
}

// Kind tells how Content must be rendered.
type Kind string

const (
	KindText  Kind = "text"
	KindVideo Kind = "video" // Content holds the public URL of the uploaded file
)

// Message is a single timestamped entry of a session.
// Display order is CreatedAt ascending; there are no sequence numbers.
type Message struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID string    `gorm:"column:chat_id;type:uuid;not null;index:idx_messages_chat_created,priority:1" json:"chat_id"`
	Sender    Sender    `gorm:"type:text;not null" json:"sender"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Kind      Kind      `gorm:"type:text;not null;default:text" json:"kind"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_chat_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// BeforeCreate assigns the id and a creation time truncated to the
// microsecond precision of the timestamptz column, so the value returned to
// callers sorts exactly like the stored one.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if m.Kind == "" {
		m.Kind = KindText
	}
	return
}
