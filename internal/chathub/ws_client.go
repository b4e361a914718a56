package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"livechat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// MessageSender persists a message typed into a live view.
type MessageSender interface {
	Send(ctx context.Context, sessionID string, sender models.Sender, content string) (*models.Message, error)
}

var (
	errMalformedFrame = errors.New("malformed frame")
	errNoSession      = errors.New("chat_id is required")
)

// WebSocketClient implements Client over a gorilla websocket.
type WebSocketClient struct {
	ID        string
	SessionID string
	Role      models.Sender
	Conn      *websocket.Conn
	Hub       *ManagerService
	Sender    MessageSender
	Send      chan models.Event

	// Redact, when set, rewrites send failures before they are echoed back.
	Redact func(error) error

	replies   chan models.Event
	skip      map[string]struct{}
	logger    *zap.Logger
	closeOnce sync.Once
}

// NewWebSocketClient builds a client for one connection. sessionID is empty
// for admin dashboards, which receive every session's events.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, sessionID string, role models.Sender, sender MessageSender, logger *zap.Logger) *WebSocketClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &WebSocketClient{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Conn:      conn,
		Hub:       hub,
		Sender:    sender,
		Send:      make(chan models.Event, sendBuffer),
		replies:   make(chan models.Event, 8),
		skip:      make(map[string]struct{}),
		logger:    logger.With(zap.String("client_id", id), zap.String("session_id", sessionID)),
	}
}

func (c *WebSocketClient) GetID() string { return c.ID }

func (c *WebSocketClient) GetSessionID() string { return c.SessionID }

func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Prime writes the snapshot frame directly to the connection and remembers
// its message ids. It must be called after Register and before Run.
func (c *WebSocketClient) Prime(snapshot []models.Message) error {
	for _, msg := range snapshot {
		c.skip[msg.ID] = struct{}{}
	}
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(models.SnapshotEvent(snapshot))
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which in turn closes the connection.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var req models.SendRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			c.reply(errMalformedFrame)
			continue
		}

		sessionID := c.SessionID
		if sessionID == "" {
			// Admin dashboards must name the session they answer.
			sessionID = req.SessionID
		}
		if sessionID == "" {
			c.reply(errNoSession)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		_, err = c.Sender.Send(ctx, sessionID, c.Role, req.Content)
		cancel()
		if err != nil {
			c.logger.Debug("websocket send rejected", zap.Error(err))
			if c.Redact != nil {
				err = c.Redact(err)
			}
			c.reply(err)
		}
	}
}

func (c *WebSocketClient) reply(err error) {
	select {
	case c.replies <- models.ErrorEvent(err):
	default:
		c.logger.Warn("reply buffer full; dropping error frame")
	}
}

// writePump is the only writer to the connection after Prime.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if c.duplicate(ev) {
				continue
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				return
			}

		case ev := <-c.replies:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// duplicate reports whether ev is an insert already delivered in the
// snapshot. Each id is skipped at most once.
func (c *WebSocketClient) duplicate(ev models.Event) bool {
	if ev.Type != models.EventInsert || ev.Table != models.TableMessages || len(c.skip) == 0 {
		return false
	}
	id := ev.RecordID()
	if _, ok := c.skip[id]; !ok {
		return false
	}
	delete(c.skip, id)
	return true
}
