package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livechat/backend/internal/api/handler"
	"livechat/backend/internal/auth"
	"livechat/backend/internal/chat"
	"livechat/backend/internal/chathub"
	"livechat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminKey = "operator-key"

type MockChat struct {
	mock.Mock
}

func (m *MockChat) Bootstrap(ctx context.Context, name string) (*models.Session, error) {
	args := m.Called(ctx, name)
	if s := args.Get(0); s != nil {
		return s.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChat) Session(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*models.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChat) Sessions(ctx context.Context) ([]models.Session, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Session), args.Error(1)
}

func (m *MockChat) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	args := m.Called(ctx, sessionID)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChat) Send(ctx context.Context, sessionID string, sender models.Sender, content string) (*models.Message, error) {
	args := m.Called(ctx, sessionID, sender, content)
	if msg := args.Get(0); msg != nil {
		return msg.(*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChat) Upload(ctx context.Context, sessionID string, sender models.Sender, filename string, r io.Reader) (*models.Message, error) {
	args := m.Called(ctx, sessionID, sender, filename)
	if msg := args.Get(0); msg != nil {
		return msg.(*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChat) DeleteSession(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockChat) DeleteMessage(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockChat) Ready(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type chanFeed struct {
	events chan models.Event
}

func (f *chanFeed) Listen(ctx context.Context) (<-chan models.Event, error) {
	return f.events, nil
}

type testEnv struct {
	router *gin.Engine
	chat   *MockChat
	tokens *auth.TokenService
	feed   *chanFeed
	hub    *chathub.ManagerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	require.NoError(t, err)

	feed := &chanFeed{events: make(chan models.Event)}
	hub := chathub.NewManagerService(feed, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	chatSvc := new(MockChat)
	tokens := auth.NewTokenService("secret", time.Hour)
	h := handler.NewHandler(hub, chatSvc, tokens, auth.NewAdminKey(string(hash)), 1024, nil)

	return &testEnv{
		router: handler.NewRouter(h, handler.RouterOptions{CORSOrigins: []string{"*"}}),
		chat:   chatSvc,
		tokens: tokens,
		feed:   feed,
		hub:    hub,
	}
}

func (e *testEnv) token(t *testing.T, sessionID string) string {
	t.Helper()
	tok, err := e.tokens.Issue(models.Session{ID: sessionID, ClientName: "Ada"})
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("Bootstrap", mock.Anything, "Ada").Return(&models.Session{ID: "s1", ClientName: "Ada"}, nil).Once()

	w := env.do(jsonRequest(http.MethodPost, "/api/sessions", `{"name":"Ada"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Session models.Session `json:"session"`
		Token   string         `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.Session.ID)

	claims, err := env.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.SessionID)
}

func TestCreateSession_EmptyName(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("Bootstrap", mock.Anything, "  ").Return(nil, chat.ErrEmptyName)

	w := env.do(jsonRequest(http.MethodPost, "/api/sessions", `{"name":"  "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"name must not be empty"}`, w.Body.String())
}

func TestCreateSession_NameTooLong(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("Bootstrap", mock.Anything, "Ada").Return(nil, chat.ErrNameTooLong)

	w := env.do(jsonRequest(http.MethodPost, "/api/sessions", `{"name":"Ada"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"name is too long"}`, w.Body.String())
}

func TestClientRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/messages", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}

func TestListMessages(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("History", mock.Anything, "s1").Return([]models.Message{
		{ID: "m1", SessionID: "s1", Content: "one"},
		{ID: "m2", SessionID: "s1", Content: "two"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "s1"))
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestPostMessage_ClientRole(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("Send", mock.Anything, "s1", models.SenderClient, "hi").
		Return(&models.Message{ID: "m1", SessionID: "s1", Sender: models.SenderClient, Content: "hi"}, nil).Once()

	req := jsonRequest(http.MethodPost, "/api/messages?token="+env.token(t, "s1"), `{"content":"hi","chat_id":"other"}`)
	w := env.do(req)
	assert.Equal(t, http.StatusCreated, w.Code)
	env.chat.AssertExpectations(t)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{chat.ErrEmptyContent, http.StatusBadRequest, "message must not be empty"},
		{chat.ErrSessionNotFound, http.StatusNotFound, "chat not found"},
		{chat.ErrUnsupportedMedia, http.StatusUnsupportedMediaType, "only video files can be uploaded"},
		{chat.ErrTooLarge, http.StatusRequestEntityTooLarge, "file is too large"},
		{&chat.UploadError{Path: "s1/1.mp4", Err: errors.New("disk full")}, http.StatusBadGateway, "upload failed"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			env := newTestEnv(t)
			env.chat.On("Send", mock.Anything, "s1", models.SenderAdmin, "x").Return(nil, tc.err)

			req := jsonRequest(http.MethodPost, "/api/admin/sessions/s1/messages", `{"content":"x"}`)
			req.Header.Set("X-Admin-Key", adminKey)
			w := env.do(req)
			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, `{"error":"`+tc.body+`"}`, w.Body.String())
		})
	}
}

func TestAdminRoutes_RequireKey(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(httptest.NewRequest(http.MethodGet, "/api/admin/sessions", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/sessions", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}

func TestAdminListSessions(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("Sessions", mock.Anything).Return([]models.Session{{ID: "s2"}, {ID: "s1"}}, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/sessions?key="+adminKey, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var sessions []models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	assert.Equal(t, "s2", sessions[0].ID)
}

func TestAdminDeletes(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("DeleteSession", mock.Anything, "s1").Return(nil).Once()
	env.chat.On("DeleteMessage", mock.Anything, "m1").Return(nil).Once()
	env.chat.On("DeleteMessage", mock.Anything, "m2").Return(chat.ErrMessageNotFound).Once()

	for target, status := range map[string]int{
		"/api/admin/sessions/s1": http.StatusNoContent,
		"/api/admin/messages/m1": http.StatusNoContent,
		"/api/admin/messages/m2": http.StatusNotFound,
	} {
		req := httptest.NewRequest(http.MethodDelete, target, nil)
		req.Header.Set("X-Admin-Key", adminKey)
		assert.Equal(t, status, env.do(req).Code, target)
	}
	env.chat.AssertExpectations(t)
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("Upload", mock.Anything, "s1", models.SenderClient, "clip.mp4").
		Return(&models.Message{ID: "m1", Kind: models.KindVideo, Content: "http://files/videos/s1/1.mp4"}, nil).Once()

	body, contentType := multipartBody(t, "file", "clip.mp4", []byte("video"))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "s1"))

	w := env.do(req)
	assert.Equal(t, http.StatusCreated, w.Code)
	env.chat.AssertExpectations(t)
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartBody(t, "other", "clip.mp4", []byte("video"))
	req := httptest.NewRequest(http.MethodPost, "/api/admin/sessions/s1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Admin-Key", adminKey)

	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
	env.chat.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	env.chat.On("Ready", mock.Anything).Return(errors.New("db down")).Once()
	assert.Equal(t, http.StatusServiceUnavailable, env.do(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)

	env.chat.On("Ready", mock.Anything).Return(nil).Once()
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)
}

func TestWebSocket_SnapshotThenLive(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("Session", mock.Anything, "s1").Return(&models.Session{ID: "s1"}, nil)
	env.chat.On("History", mock.Anything, "s1").Return([]models.Message{
		{ID: "m1", SessionID: "s1", Content: "one"},
	}, nil)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + env.token(t, "s1")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev models.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventSnapshot, ev.Type)
	require.Len(t, ev.Messages, 1)

	live, err := models.NewMessageEvent(models.EventInsert, models.Message{ID: "m2", SessionID: "s1", Content: "two"})
	require.NoError(t, err)
	env.feed.events <- live

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventInsert, ev.Type)
	assert.Equal(t, "m2", ev.RecordID())
}

func TestWebSocket_DeletedSession(t *testing.T) {
	env := newTestEnv(t)
	env.chat.On("Session", mock.Anything, "gone").Return(nil, chat.ErrSessionNotFound)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+env.token(t, "gone"), nil)
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)
}
