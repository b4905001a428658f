package notification

import (
	"context"

	"github.com/pkg/errors"
)

// MessageSender sends a MarkdownV2 text message to a telegram chat.
type MessageSender interface {
	SendMarkdown(chatID int64, text string) error
}

// Telegram delivers alerts as bot messages to the owner's chat.
type Telegram struct {
	bot MessageSender
}

func NewTelegram(bot MessageSender) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Accepts(r Recipient) bool { return r.TelegramChatID != 0 }

func (t *Telegram) Send(ctx context.Context, msg AlertMessage) error {
	done := make(chan error, 1)
	go func() {
		done <- t.bot.SendMarkdown(msg.Recipient.TelegramChatID, msg.Markdown())
	}()

	select {
	case err := <-done:
		return errors.Wrapf(err, "could not send telegram message to chat %d", msg.Recipient.TelegramChatID)
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "telegram delivery timed out")
	}
}
