package telegram

import (
	"context"

	"price-alert-bot/internal/alert"
	"price-alert-bot/internal/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// Bot telegram interaction client
type Bot struct {
	Bot     *tgbotapi.BotAPI
	Config  BotConfig
	Handler *Handler

	// OnCommand is called for every handled message with its command name.
	OnCommand func(command string)
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}

// AlertManager is the alert management the bot exposes to users.
type AlertManager interface {
	CreateAlert(ctx context.Context, ownerID string, in alert.AlertInput) (*types.Alert, error)
	ListAlerts(ctx context.Context, ownerID string) ([]types.Alert, error)
	DeleteAlert(ctx context.Context, ownerID string, id int64) error
}

// UserRegistry stores the users talking to the bot.
type UserRegistry interface {
	UpsertUser(ctx context.Context, user *types.User) error
}

// PriceQuoter is used to show the current price next to a new alert.
type PriceQuoter interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool)
}
