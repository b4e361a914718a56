package models

import (
	"encoding/json"
	"fmt"
)

// EventType is the kind of frame pushed to realtime subscribers.
type EventType string

const (
	EventInsert   EventType = "insert"
	EventDelete   EventType = "delete"
	EventSnapshot EventType = "snapshot"
	EventError    EventType = "error"
)

// MaxTextFieldBytes is the room left for a free-text column (message content,
// client name) inside a change notification. pg_notify rejects payloads of
// 8000 bytes or more, and the trigger fires inside the INSERT, so a row that
// encodes past the limit cannot be written at all.
const MaxTextFieldBytes = 7500

// EncodedLen returns the length of s as a JSON string literal. It is never
// shorter than the encoding Postgres produces for the same text.
func EncodedLen(s string) int {
	b, err := json.Marshal(s)
	if err != nil {
		return len(s)
	}
	return len(b)
}

// Table names as they appear in change events.
const (
	TableSessions = "chats"
	TableMessages = "messages"
)

// Event is a change of one row, as emitted by the change feed, or a frame
// produced by the server itself (snapshot, error).
// Record is the raw row; its field names equal the column names.
type Event struct {
	Type     EventType       `json:"type"`
	Table    string          `json:"table,omitempty"`
	Record   json.RawMessage `json:"record,omitempty"`
	Messages []Message       `json:"messages,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SendRequest is the body of a message sent over REST or as an inbound
// websocket frame. SessionID is only read on admin connections.
type SendRequest struct {
	SessionID string `json:"chat_id,omitempty"`
	Content   string `json:"content"`
}

// NewMessageEvent builds a change event for a messages row.
func NewMessageEvent(t EventType, m Message) (Event, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return Event{}, fmt.Errorf("encode message %s: %w", m.ID, err)
	}
	return Event{Type: t, Table: TableMessages, Record: raw}, nil
}

// NewSessionEvent builds a change event for a chats row.
func NewSessionEvent(t EventType, s Session) (Event, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return Event{}, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return Event{Type: t, Table: TableSessions, Record: raw}, nil
}

// SnapshotEvent carries the full history of a session, oldest first.
func SnapshotEvent(messages []Message) Event {
	if messages == nil {
		messages = []Message{}
	}
	return Event{Type: EventSnapshot, Table: TableMessages, Messages: messages}
}

// ErrorEvent reports a failed inbound request back to the connection.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Error: err.Error()}
}

type rowKeys struct {
	ID        string `json:"id"`
	SessionID string `json:"chat_id"`
}

// RecordID returns the primary key of the changed row.
func (e Event) RecordID() string {
	var k rowKeys
	if len(e.Record) == 0 || json.Unmarshal(e.Record, &k) != nil {
		return ""
	}
	return k.ID
}

// SessionID returns the session the changed row belongs to.
func (e Event) SessionID() string {
	var k rowKeys
	if len(e.Record) == 0 || json.Unmarshal(e.Record, &k) != nil {
		return ""
	}
	if e.Table == TableSessions {
		return k.ID
	}
	return k.SessionID
}

// Message decodes Record as a messages row.
func (e Event) Message() (Message, error) {
	var m Message
	if e.Table != TableMessages {
		return m, fmt.Errorf("event on table %q is not a message", e.Table)
	}
	if err := json.Unmarshal(e.Record, &m); err != nil {
		return m, fmt.Errorf("decode message record: %w", err)
	}
	return m, nil
}

// Session decodes Record as a chats row.
func (e Event) Session() (Session, error) {
	var s Session
	if e.Table != TableSessions {
		return s, fmt.Errorf("event on table %q is not a session", e.Table)
	}
	if err := json.Unmarshal(e.Record, &s); err != nil {
		return s, fmt.Errorf("decode session record: %w", err)
	}
	return s, nil
}
