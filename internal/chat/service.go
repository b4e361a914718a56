// Package chat implements the operations of both views on top of storage,
// the blob store and the realtime publisher.
package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"livechat/backend/internal/blob"
	"livechat/backend/internal/models"
	"livechat/backend/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// sniffLen is how much of an upload is inspected to detect its type.
const sniffLen = 3072

type Options struct {
	MaxContentLen  int
	MaxUploadBytes int64
}

type Service struct {
	store     storage.Storage
	blobs     blob.Store
	publisher Publisher
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store storage.Storage, blobs blob.Store, publisher Publisher, opts Options, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		blobs:     blobs,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Bootstrap opens a new session for the given display name.
func (s *Service) Bootstrap(ctx context.Context, name string) (*models.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if models.EncodedLen(name) > models.MaxTextFieldBytes {
		return nil, ErrNameTooLong
	}
	session, err := s.store.CreateSession(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("session opened", zap.String("session_id", session.ID))

	if ev, err := models.NewSessionEvent(models.EventInsert, *session); err == nil {
		s.publish(ctx, ev)
	}
	return session, nil
}

func (s *Service) Session(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	return session, nil
}

// Sessions lists every session, most recently active first.
func (s *Service) Sessions(ctx context.Context) ([]models.Session, error) {
	return s.store.ListSessions(ctx)
}

// History returns the messages of a session in display order.
func (s *Service) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	return s.store.ListMessages(ctx, sessionID)
}

// Send stores a text message.
func (s *Service) Send(ctx context.Context, sessionID string, sender models.Sender, content string) (*models.Message, error) {
	if !sender.Valid() {
		return nil, ErrInvalidSender
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.opts.MaxContentLen > 0 && utf8.RuneCountInString(content) > s.opts.MaxContentLen {
		return nil, ErrContentTooLong
	}
	// The rune limit alone does not bound the notification size.
	if models.EncodedLen(content) > models.MaxTextFieldBytes {
		return nil, ErrContentTooLong
	}

	msg := &models.Message{
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Kind:      models.KindText,
	}
	if err := s.save(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Upload stores a video attachment and the message that links to it. If the
// blob cannot be written no message is created.
func (s *Service) Upload(ctx context.Context, sessionID string, sender models.Sender, filename string, r io.Reader) (*models.Message, error) {
	if !sender.Valid() {
		return nil, ErrInvalidSender
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	if !isVideo(mt) {
		return nil, ErrUnsupportedMedia
	}
	ext := mt.Extension()
	if ext == "" {
		ext = filepath.Ext(filename)
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	if s.opts.MaxUploadBytes > 0 {
		body = &maxReader{r: body, left: s.opts.MaxUploadBytes}
	}

	objectPath := blob.ObjectPath(sessionID, s.now(), ext)
	if err := s.blobs.Put(ctx, objectPath, body); err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, ErrTooLarge
		}
		return nil, &UploadError{Path: objectPath, Err: err}
	}

	msg := &models.Message{
		SessionID: sessionID,
		Sender:    sender,
		Content:   s.blobs.URL(objectPath),
		Kind:      models.KindVideo,
	}
	if err := s.save(ctx, msg); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), objectPath); derr != nil {
			s.logger.Error("orphaned upload", zap.String("path", objectPath), zap.Error(derr))
		}
		return nil, err
	}
	s.logger.Info("video uploaded",
		zap.String("session_id", sessionID),
		zap.String("path", objectPath),
		zap.String("mime", mt.String()))
	return msg, nil
}

// DeleteSession removes a session and, with it, all of its messages.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	session, err := s.store.DeleteSession(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrSessionNotFound)
	}
	s.logger.Info("session deleted", zap.String("session_id", id))

	if ev, err := models.NewSessionEvent(models.EventDelete, *session); err == nil {
		s.publish(ctx, ev)
	}
	return nil
}

func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	msg, err := s.store.DeleteMessage(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrMessageNotFound)
	}
	if ev, err := models.NewMessageEvent(models.EventDelete, *msg); err == nil {
		s.publish(ctx, ev)
	}
	return nil
}

// Ready reports whether the database answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) save(ctx context.Context, msg *models.Message) error {
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return mapNotFound(err, ErrSessionNotFound)
	}
	if ev, err := models.NewMessageEvent(models.EventInsert, *msg); err == nil {
		s.publish(ctx, ev)
	}
	return nil
}

// publish never fails the write: the row is already committed.
func (s *Service) publish(ctx context.Context, ev models.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish change failed",
			zap.String("table", ev.Table),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}

func mapNotFound(err, target error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return target
	}
	return err
}

func isVideo(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}

type maxReader struct {
	r    io.Reader
	left int64
}

func (m *maxReader) Read(p []byte) (int, error) {
	if m.left < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > m.left+1 {
		p = p[:m.left+1]
	}
	n, err := m.r.Read(p)
	m.left -= int64(n)
	if m.left < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
