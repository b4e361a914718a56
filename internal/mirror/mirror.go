// Package mirror keeps a local copy of one session's message list in sync
// with the realtime feed.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"livechat/backend/internal/models"

	"github.com/gorilla/websocket"
)

// ErrSessionDeleted ends a tail when the mirrored session is removed.
var ErrSessionDeleted = errors.New("mirror: session deleted")

// Mirror is the in-memory message list of a view. It is safe for concurrent
// use.
type Mirror struct {
	mu        sync.RWMutex
	sessionID string
	messages  []models.Message
	seen      map[string]struct{}
	deleted   bool
}

// New returns an empty mirror. An empty sessionID accepts every session.
func New(sessionID string) *Mirror {
	return &Mirror{sessionID: sessionID, seen: make(map[string]struct{})}
}

// Reset replaces the list with a snapshot, kept in the order given.
func (m *Mirror) Reset(snapshot []models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = make([]models.Message, 0, len(snapshot))
	m.seen = make(map[string]struct{}, len(snapshot))
	m.deleted = false
	for _, msg := range snapshot {
		if _, dup := m.seen[msg.ID]; dup {
			continue
		}
		m.seen[msg.ID] = struct{}{}
		m.messages = append(m.messages, msg)
	}
}

// Apply folds one event into the list and reports whether it changed.
func (m *Mirror) Apply(ev models.Event) (bool, error) {
	if ev.Type == models.EventSnapshot {
		m.Reset(ev.Messages)
		return true, nil
	}
	if ev.Type == models.EventError {
		return false, nil
	}
	if m.sessionID != "" && ev.SessionID() != m.sessionID {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case ev.Table == models.TableSessions && ev.Type == models.EventDelete:
		m.messages = nil
		m.seen = make(map[string]struct{})
		m.deleted = true
		return true, nil

	case ev.Table == models.TableMessages && ev.Type == models.EventInsert:
		msg, err := ev.Message()
		if err != nil {
			return false, err
		}
		if _, dup := m.seen[msg.ID]; dup {
			return false, nil
		}
		m.seen[msg.ID] = struct{}{}
		m.messages = append(m.messages, msg)
		return true, nil

	case ev.Table == models.TableMessages && ev.Type == models.EventDelete:
		id := ev.RecordID()
		if _, ok := m.seen[id]; !ok {
			return false, nil
		}
		delete(m.seen, id)
		for i, msg := range m.messages {
			if msg.ID == id {
				m.messages = append(m.messages[:i], m.messages[i+1:]...)
				break
			}
		}
		return true, nil
	}
	return false, nil
}

// Messages returns a copy of the list in display order.
func (m *Mirror) Messages() []models.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Deleted reports whether the mirrored session was removed.
func (m *Mirror) Deleted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deleted
}

// Conn is a live connection feeding a Mirror.
type Conn struct {
	ws     *websocket.Conn
	Mirror *Mirror
}

// Dial opens the websocket at wsURL with the session credential and waits
// for the snapshot frame.
func Dial(ctx context.Context, wsURL, token, sessionID string) (*Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", wsURL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	var first models.Event
	if err := ws.ReadJSON(&first); err != nil {
		ws.Close()
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if first.Type != models.EventSnapshot {
		ws.Close()
		if first.Type == models.EventError {
			return nil, fmt.Errorf("snapshot refused: %s", first.Error)
		}
		return nil, fmt.Errorf("expected snapshot, got %q", first.Type)
	}

	m := New(sessionID)
	m.Reset(first.Messages)
	return &Conn{ws: ws, Mirror: m}, nil
}

// Tail applies every following frame until the connection drops, ctx ends or
// the session is deleted. onChange runs after each change with the event
// that caused it. Error frames are passed to onChange without touching the
// list. There is no reconnect.
func (c *Conn) Tail(ctx context.Context, onChange func(models.Event)) error {
	stop := context.AfterFunc(ctx, func() { c.ws.Close() })
	defer stop()

	for {
		var ev models.Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("mirror connection lost: %w", err)
		}
		changed, err := c.Mirror.Apply(ev)
		if err != nil {
			continue
		}
		if (changed || ev.Type == models.EventError) && onChange != nil {
			onChange(ev)
		}
		if c.Mirror.Deleted() {
			return ErrSessionDeleted
		}
	}
}

// Send writes an inbound message frame.
func (c *Conn) Send(content string) error {
	return c.ws.WriteJSON(models.SendRequest{Content: content})
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
