package chathub_test

import (
	"context"
	"sync"

	"livechat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	id          string
	sessionID   string
	RecvChannel chan models.Event

	mu     sync.Mutex
	closed bool
}

func newMockClient(id, sessionID string, buffer int) *MockClient {
	return &MockClient{
		id:          id,
		sessionID:   sessionID,
		RecvChannel: make(chan models.Event, buffer),
	}
}

func (c *MockClient) GetID() string { return c.id }

func (c *MockClient) GetSessionID() string { return c.sessionID }

func (c *MockClient) GetSendChannel() chan<- models.Event { return c.RecvChannel }

func (c *MockClient) Run() {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// chanFeed is a Feed driven by the test.
type chanFeed struct {
	events chan models.Event
	err    error
}

func newChanFeed() *chanFeed {
	return &chanFeed{events: make(chan models.Event)}
}

func (f *chanFeed) Listen(ctx context.Context) (<-chan models.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, sessionID string, sender models.Sender, content string) (*models.Message, error) {
	args := m.Called(ctx, sessionID, sender, content)
	if msg := args.Get(0); msg != nil {
		return msg.(*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}
