package telegram

import (
	"context"
	"sync"
	"time"
	"unicode/utf16"

	"livechat/backend/internal/chathub"
	"livechat/backend/internal/localization"
	"livechat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	notifierID  = "telegram-notifier"
	sendTimeout = 10 * time.Second

	// outboxSize bounds the events waiting for a slow Bot API.
	outboxSize = 1024
	// maxTextUnits is the Bot API text limit, counted in UTF-16 code units.
	maxTextUnits = 4096
)

// Bot is the part of *tgbotapi.BotAPI the notifier uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatService is what the notifier needs from the chat service.
type ChatService interface {
	chathub.MessageSender
	Session(ctx context.Context, id string) (*models.Session, error)
}

// Notifier is a hub client watching every session. It forwards new chats
// and client messages to the operator's Telegram chat and turns operator
// replies into admin messages.
type Notifier struct {
	Bot         Bot
	AdminChatID int64
	Lang        string
	Localizer   *localization.Localizer
	Replies     ReplyIndex
	Chat        ChatService
	Send        chan models.Event

	outbox    chan models.Event
	names     map[string]string
	logger    *zap.Logger
	closeOnce sync.Once
	stopped   chan struct{}
}

func NewNotifier(bot Bot, adminChatID int64, lang string, loc *localization.Localizer, replies ReplyIndex, chat ChatService, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if replies == nil {
		replies = NewMemoryReplyIndex(72 * time.Hour)
	}
	return &Notifier{
		Bot:         bot,
		AdminChatID: adminChatID,
		Lang:        lang,
		Localizer:   loc,
		Replies:     replies,
		Chat:        chat,
		Send:        make(chan models.Event, 256),
		outbox:      make(chan models.Event, outboxSize),
		names:       make(map[string]string),
		logger:      logger.With(zap.String("component", "telegram")),
		stopped:     make(chan struct{}),
	}
}

func (n *Notifier) GetID() string { return notifierID }

func (n *Notifier) GetSessionID() string { return "" }

func (n *Notifier) GetSendChannel() chan<- models.Event { return n.Send }

// Run starts the write pump and the sender. Operator replies are read by
// Poll.
func (n *Notifier) Run() {
	go n.writePump()
	go n.sendLoop()
}

func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.Send) })
}

// Done is closed once the hub has detached the notifier and the queued
// events have been sent.
func (n *Notifier) Done() <-chan struct{} { return n.stopped }

// writePump only moves events from the hub to the outbox, so a slow Bot API
// never fills the hub-facing buffer. Overflow is discarded.
func (n *Notifier) writePump() {
	defer close(n.outbox)
	for ev := range n.Send {
		select {
		case n.outbox <- ev:
		default:
			n.logger.Warn("telegram outbox full, event not forwarded",
				zap.String("table", ev.Table),
				zap.String("type", string(ev.Type)))
		}
	}
	n.logger.Info("telegram notifier detached from hub")
}

func (n *Notifier) sendLoop() {
	defer close(n.stopped)
	for ev := range n.outbox {
		n.handleEvent(ev)
	}
}

func (n *Notifier) handleEvent(ev models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	switch {
	case ev.Table == models.TableSessions && ev.Type == models.EventInsert:
		s, err := ev.Session()
		if err != nil {
			n.logger.Warn("bad session event", zap.Error(err))
			return
		}
		n.names[s.ID] = s.ClientName
		n.forward(ctx, s.ID, n.Localizer.Format(n.Lang, "session_opened", s.ClientName))

	case ev.Table == models.TableSessions && ev.Type == models.EventDelete:
		s, err := ev.Session()
		if err != nil {
			return
		}
		name := n.nameOf(ctx, s.ID, s.ClientName)
		delete(n.names, s.ID)
		n.forward(ctx, "", n.Localizer.Format(n.Lang, "session_deleted", name))

	case ev.Table == models.TableMessages && ev.Type == models.EventInsert:
		m, err := ev.Message()
		if err != nil {
			n.logger.Warn("bad message event", zap.Error(err))
			return
		}
		if m.Sender != models.SenderClient {
			return
		}
		name := n.nameOf(ctx, m.SessionID, "")
		key := "client_message"
		if m.Kind == models.KindVideo {
			key = "client_video"
		}
		n.forward(ctx, m.SessionID, n.Localizer.Format(n.Lang, key, name, m.Content))
	}
}

func (n *Notifier) nameOf(ctx context.Context, sessionID, fallback string) string {
	if name, ok := n.names[sessionID]; ok {
		return name
	}
	if fallback != "" {
		return fallback
	}
	s, err := n.Chat.Session(ctx, sessionID)
	if err != nil {
		return sessionID
	}
	n.names[sessionID] = s.ClientName
	return s.ClientName
}

// forward sends text to the operator and, when sessionID is set, remembers
// the sent message so a reply to it reaches that session.
func (n *Notifier) forward(ctx context.Context, sessionID, text string) {
	sent, err := n.Bot.Send(tgbotapi.NewMessage(n.AdminChatID, truncateText(text, maxTextUnits)))
	if err != nil {
		n.logger.Warn("telegram send failed", zap.Error(err))
		return
	}
	if sessionID == "" {
		return
	}
	if err := n.Replies.Remember(ctx, sent.MessageID, sessionID); err != nil {
		n.logger.Warn("remember forwarded message failed",
			zap.Int("message_id", sent.MessageID), zap.Error(err))
	}
}

// truncateText cuts s so that it fits in limit UTF-16 code units, marking the
// cut with an ellipsis.
func truncateText(s string, limit int) string {
	units, keep := 0, 0
	for i, r := range s {
		if units <= limit-1 {
			keep = i
		}
		units += utf16.RuneLen(r)
		if units > limit {
			return s[:keep] + "…"
		}
	}
	return s
}
