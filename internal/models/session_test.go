package models_test

import (
	"reflect"
	"testing"
	"time"

	"livechat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestSessionBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestSessionBeforeCreate_GeneratesUUID(t *testing.T) {
	session := &models.Session{ClientName: "Giulia"}

	assert.Empty(t, session.ID, "Session ID should be empty before BeforeCreate")

	err := session.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(session.ID)
	assert.NoError(t, parseErr, "Session ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestSessionBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestSessionBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	session := &models.Session{ID: existingID, ClientName: "Marco"}

	assert.NoError(t, session.BeforeCreate(nil))
	assert.Equal(t, existingID, session.ID)
}

// Two clients may pick the same name; each still gets its own session.
func TestSessionBeforeCreate_SameNameDistinctIDs(t *testing.T) {
	a := &models.Session{ClientName: "Anna"}
	b := &models.Session{ClientName: "Anna"}

	assert.NoError(t, a.BeforeCreate(nil))
	assert.NoError(t, b.BeforeCreate(nil))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMessageBeforeCreate_Defaults(t *testing.T) {
	msg := &models.Message{SessionID: uuid.NewString(), Sender: models.SenderClient, Content: "ciao"}

	assert.NoError(t, msg.BeforeCreate(nil))

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, models.KindText, msg.Kind)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, msg.CreatedAt, msg.CreatedAt.Truncate(time.Microsecond), "CreatedAt must fit timestamptz precision")
}

func TestMessageBeforeCreate_KeepsVideoKind(t *testing.T) {
	msg := &models.Message{Kind: models.KindVideo}

	assert.NoError(t, msg.BeforeCreate(nil))
	assert.Equal(t, models.KindVideo, msg.Kind)
}

func TestSenderValid(t *testing.T) {
	assert.True(t, models.SenderClient.Valid())
	assert.True(t, models.SenderAdmin.Valid())
	assert.False(t, models.Sender("system").Valid())
	assert.False(t, models.Sender("").Valid())
}

// TestStructTags guards the column names the change-feed payload depends on.
func TestStructTags(t *testing.T) {
	msgType := reflect.TypeOf(models.Message{})

	sessionField, found := msgType.FieldByName("SessionID")
	assert.True(t, found)
	assert.Contains(t, sessionField.Tag.Get("gorm"), "column:chat_id")
	assert.Equal(t, "chat_id", sessionField.Tag.Get("json"))

	sessType := reflect.TypeOf(models.Session{})
	nameField, found := sessType.FieldByName("ClientName")
	assert.True(t, found)
	assert.Equal(t, "client_name", nameField.Tag.Get("json"))

	msgsField, found := sessType.FieldByName("Messages")
	assert.True(t, found)
	assert.Contains(t, msgsField.Tag.Get("gorm"), "OnDelete:CASCADE", "deleting a session must remove its messages")

	assert.Equal(t, "chats", models.Session{}.TableName())
	assert.Equal(t, "messages", models.Message{}.TableName())
}
