package chat_test

import (
	"context"
	"io"

	"livechat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateSession(ctx context.Context, clientName string) (*models.Session, error) {
	args := m.Called(ctx, clientName)
	if s := args.Get(0); s != nil {
		return s.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) ListSessions(ctx context.Context) ([]models.Session, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Session), args.Error(1)
}

func (m *MockStorage) DeleteSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) DeleteMessage(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if msg := args.Get(0); msg != nil {
		return msg.(*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockBlobStore struct {
	mock.Mock
	written []byte
}

func (m *MockBlobStore) Put(ctx context.Context, objectPath string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.written = b
	return m.Called(ctx, objectPath).Error(0)
}

func (m *MockBlobStore) Delete(ctx context.Context, objectPath string) error {
	return m.Called(ctx, objectPath).Error(0)
}

func (m *MockBlobStore) URL(objectPath string) string {
	return "http://files/videos/" + objectPath
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev models.Event) error {
	return m.Called(ctx, ev).Error(0)
}
