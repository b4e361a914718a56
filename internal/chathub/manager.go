package chathub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"livechat/backend/internal/models"

	"go.uber.org/zap"
)

// ErrFeedClosed is returned by Run when the change feed stops delivering
// while the hub is still expected to run.
var ErrFeedClosed = errors.New("chathub: change feed closed")

// ManagerService fans row changes out to the connected views.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client

	feed   Feed
	logger *zap.Logger

	done     chan struct{}
	doneOnce sync.Once
}

func NewManagerService(feed Feed, logger *zap.Logger) *ManagerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManagerService{
		clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		feed:         feed,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Register adds c to the fan-out set. Once it returns true, every event the
// hub handles afterwards is offered to c. It returns false if the hub has
// stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes c and closes it. Safe to call after shutdown.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *ManagerService) HasClient(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[id]
	return ok
}

// Run is the hub loop. It returns nil when ctx is cancelled; every client
// still registered is closed on the way out.
func (m *ManagerService) Run(ctx context.Context) error {
	events, err := m.feed.Listen(ctx)
	if err != nil {
		m.shutdown()
		return fmt.Errorf("listen for changes: %w", err)
	}
	defer m.shutdown()

	m.logger.Info("chat hub started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("chat hub stopping")
			return nil

		case c := <-m.RegisterCh:
			m.mu.Lock()
			if old, ok := m.clients[c.GetID()]; ok && old != c {
				old.Close()
			}
			m.clients[c.GetID()] = c
			m.mu.Unlock()
			m.logger.Debug("client registered",
				zap.String("client_id", c.GetID()),
				zap.String("session_id", c.GetSessionID()))

		case c := <-m.UnregisterCh:
			m.remove(c)

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrFeedClosed
			}
			m.broadcast(ev)
		}
	}
}

func (m *ManagerService) remove(c Client) {
	m.mu.Lock()
	current, ok := m.clients[c.GetID()]
	if ok && current == c {
		delete(m.clients, c.GetID())
	}
	m.mu.Unlock()

	if ok && current == c {
		c.Close()
		m.logger.Debug("client unregistered", zap.String("client_id", c.GetID()))
	}
}

// broadcast offers ev to every matching client without blocking. A client
// whose buffer is full is dropped.
func (m *ManagerService) broadcast(ev models.Event) {
	sessionID := ev.SessionID()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.clients {
		if !Watches(c, sessionID) {
			continue
		}
		select {
		case c.GetSendChannel() <- ev:
		default:
			m.logger.Warn("dropping slow client",
				zap.String("client_id", id),
				zap.String("session_id", c.GetSessionID()))
			delete(m.clients, id)
			c.Close()
		}
	}
}

func (m *ManagerService) shutdown() {
	m.doneOnce.Do(func() {
		close(m.done)

		m.mu.Lock()
		defer m.mu.Unlock()
		for id, c := range m.clients {
			c.Close()
			delete(m.clients, id)
		}
	})
}
