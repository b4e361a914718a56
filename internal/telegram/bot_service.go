// Package telegram notifies the operator about chat activity through a
// Telegram bot and relays the operator's replies back into the chats.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"livechat/backend/internal/chat"
	"livechat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// NewBotAPI authorizes the bot token.
func NewBotAPI(token string, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	bot.Debug = false
	logger.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))
	return bot, nil
}

// Updates starts long polling.
func Updates(bot *tgbotapi.BotAPI) <-chan tgbotapi.Update {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	return bot.GetUpdatesChan(u)
}

// Poll is the main loop for receiving Telegram updates. It returns when ctx
// is cancelled or updates is closed.
func (n *Notifier) Poll(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			n.handleOperatorMessage(ctx, update.Message)
		}
	}
}

// extractMessageContent uniformly extracts text or a caption from a message.
func extractMessageContent(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func (n *Notifier) handleOperatorMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat.ID != n.AdminChatID {
		n.logger.Debug("ignoring message from foreign chat")
		return
	}
	if msg.ReplyToMessage == nil {
		n.notify(n.Localizer.GetString(n.Lang, "reply_hint"))
		return
	}

	sessionID, ok, err := n.Replies.Lookup(ctx, msg.ReplyToMessage.MessageID)
	if err != nil {
		n.logger.Warn("reply lookup failed", zap.Error(err))
	}
	if !ok {
		n.notify(n.Localizer.GetString(n.Lang, "reply_unknown"))
		return
	}

	content := strings.TrimSpace(extractMessageContent(msg))
	if _, err := n.Chat.Send(ctx, sessionID, models.SenderAdmin, content); err != nil {
		reason := err.Error()
		if !isUserError(err) {
			n.logger.Error("operator reply failed", zap.String("session_id", sessionID), zap.Error(err))
			reason = "internal error"
		}
		n.notify(n.Localizer.Format(n.Lang, "reply_failed", reason))
		return
	}
	n.notify(n.Localizer.GetString(n.Lang, "reply_sent"))
}

func (n *Notifier) notify(text string) {
	if _, err := n.Bot.Send(tgbotapi.NewMessage(n.AdminChatID, text)); err != nil {
		n.logger.Warn("telegram send failed", zap.Error(err))
	}
}

func isUserError(err error) bool {
	for _, target := range []error{
		chat.ErrEmptyContent, chat.ErrContentTooLong, chat.ErrSessionNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
