package telegram

import (
	"bytes"
	"context"
	"runtime"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewBot creates new telegram bot
func NewBot(c BotConfig, handler *Handler) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:     bot,
		Config:  c,
		Handler: handler,
	}, nil
}

// GetUpdatesChannel gets new updates updates
func (b *Bot) GetUpdatesChannel() tgbotapi.UpdatesChannel {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig)
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	if _, err := b.Bot.Send(msg); err != nil {
		return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
	}
	return nil
}

// SendMarkdown sends an unsolicited MarkdownV2 message, used for alert notifications.
func (b *Bot) SendMarkdown(chatID int64, text string) error {
	return b.SendMessage(Message{ChatID: chatID, Text: text})
}

// Run handles updates until ctx is cancelled or the channel is closed.
func (b *Bot) Run(ctx context.Context) {
	updates := b.GetUpdatesChannel()
	defer b.Bot.StopReceivingUpdates()

	log.Info("Telegram bot is listening for commands")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		log.Debug("Received non-message or non-command")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	command := update.Message.Command()
	log.Debugf("received command: %s", command)
	if b.OnCommand != nil {
		b.OnCommand(command)
	}

	text := b.Handler.HandleCommand(ctx, update.Message.Chat.ID, command, update.Message.CommandArguments())
	if text == "" {
		return
	}

	err := b.SendMessage(Message{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		MessageID: update.Message.MessageID,
	})
	if err != nil {
		log.Errorf("Failed to send message: %v", err)
	}
}
