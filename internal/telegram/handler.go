package telegram

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"price-alert-bot/internal/alert"
	"price-alert-bot/internal/types"
	"price-alert-bot/lib/helpers"
	"price-alert-bot/lib/translation"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var errAlertUsage = errors.New("usage: /alert SYMBOL upper|lower PRICE [name]")

// Handler turns bot commands into alert management calls. Replies are MarkdownV2.
type Handler struct {
	alerts AlertManager
	users  UserRegistry
	prices PriceQuoter
}

// NewHandler creates a Handler. prices may be nil.
func NewHandler(alerts AlertManager, users UserRegistry, prices PriceQuoter) *Handler {
	return &Handler{alerts: alerts, users: users, prices: prices}
}

func ownerID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// HandleCommand processes a single command sent from chatID.
func (h *Handler) HandleCommand(ctx context.Context, chatID int64, command, args string) string {
	switch command {
	case "start":
		return h.start(ctx, chatID)
	case "email":
		return h.email(ctx, chatID, args)
	case "alert":
		return h.createAlert(ctx, chatID, args)
	case "alerts":
		return h.listAlerts(ctx, chatID)
	case "delete":
		return h.deleteAlert(ctx, chatID, args)
	default:
		return helpText()
	}
}

func helpText() string {
	return helpers.EscapeMarkdownV2(translation.Translate(
		"Commands:\n" +
			"/alert SYMBOL upper|lower PRICE [name] - get notified once the price crosses PRICE\n" +
			"/alerts - list your active alerts\n" +
			"/delete ID - remove an alert\n" +
			"/email ADDRESS - also receive alerts by e-mail\n" +
			"/help - show this message"))
}

func (h *Handler) register(ctx context.Context, chatID int64, email string) error {
	return h.users.UpsertUser(ctx, &types.User{
		ID:             ownerID(chatID),
		Email:          email,
		TelegramChatID: chatID,
	})
}

func (h *Handler) start(ctx context.Context, chatID int64) string {
	if err := h.register(ctx, chatID, ""); err != nil {
		log.Error(err)
		return helpers.EscapeMarkdownV2(translation.Translate("Something went wrong, please try again later."))
	}
	return helpers.EscapeMarkdownV2(translation.Translate("👋 Welcome! I will message you here when your price alerts trigger.")) +
		"\n\n" + helpText()
}

func (h *Handler) email(ctx context.Context, chatID int64, args string) string {
	address, err := mail.ParseAddress(strings.TrimSpace(args))
	if err != nil {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /email you@example.com"))
	}
	if err := h.register(ctx, chatID, address.Address); err != nil {
		log.Error(err)
		return helpers.EscapeMarkdownV2(translation.Translate("Something went wrong, please try again later."))
	}
	return helpers.EscapeMarkdownV2(translation.Translate("📧 Alerts will also be sent to %s", address.Address))
}

// ParseAlertArguments parses "SYMBOL CONDITION PRICE [name...]".
func ParseAlertArguments(args string) (alert.AlertInput, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return alert.AlertInput{}, errAlertUsage
	}

	condition, ok := types.ParseCondition(fields[1])
	if !ok {
		return alert.AlertInput{}, alert.ErrInvalidCondition
	}

	raw := strings.ReplaceAll(strings.TrimPrefix(fields[2], "$"), ",", "")
	threshold, err := decimal.NewFromString(raw)
	if err != nil {
		return alert.AlertInput{}, alert.ErrInvalidThreshold
	}

	return alert.AlertInput{
		Symbol:    fields[0],
		Name:      strings.Join(fields[3:], " "),
		Condition: condition,
		Threshold: threshold,
	}, nil
}

func (h *Handler) createAlert(ctx context.Context, chatID int64, args string) string {
	in, err := ParseAlertArguments(args)
	if err != nil {
		return alertErrorText(err)
	}

	if err := h.register(ctx, chatID, ""); err != nil {
		log.Error(err)
		return helpers.EscapeMarkdownV2(translation.Translate("Something went wrong, please try again later."))
	}

	created, err := h.alerts.CreateAlert(ctx, ownerID(chatID), in)
	if err != nil {
		return alertErrorText(err)
	}

	text := translation.Translate("✅ Alert #%d set: %s (%s) %s $%s",
		created.ID, created.Symbol, created.Company, string(created.Condition),
		helpers.FormatPriceUS(created.Threshold))
	if h.prices != nil {
		if current, ok := h.prices.CurrentPrice(ctx, created.Symbol); ok {
			text += "\n" + translation.Translate("Current price: $%s", helpers.FormatPriceUS(current))
		}
	}
	return helpers.EscapeMarkdownV2(text)
}

func alertErrorText(err error) string {
	var text string
	switch {
	case errors.Is(err, errAlertUsage):
		text = translation.Translate("Usage: /alert SYMBOL upper|lower PRICE [name]\nExample: /alert AAPL upper 150")
	case errors.Is(err, alert.ErrInvalidSymbol):
		text = translation.Translate("Please provide a symbol.")
	case errors.Is(err, alert.ErrInvalidCondition):
		text = translation.Translate("Condition must be upper or lower.")
	case errors.Is(err, alert.ErrInvalidThreshold):
		text = translation.Translate("Price must be a number greater than 0.")
	case errors.Is(err, alert.ErrDuplicateAlert):
		text = translation.Translate("Alert already exists.")
	default:
		log.Error(err)
		text = translation.Translate("Failed to save alert. Please try again later.")
	}
	return helpers.EscapeMarkdownV2(text)
}

func (h *Handler) listAlerts(ctx context.Context, chatID int64) string {
	alerts, err := h.alerts.ListAlerts(ctx, ownerID(chatID))
	if err != nil {
		log.Error(err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to fetch alerts. Please try again later."))
	}
	if len(alerts) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("You have no alerts. Create one with /alert."))
	}

	var b strings.Builder
	b.WriteString("*" + helpers.EscapeMarkdownV2(translation.Translate("Your alerts:")) + "*\n")
	for _, a := range alerts {
		line := fmt.Sprintf("#%d %s %s $%s · %s", a.ID, a.Symbol, a.Condition,
			helpers.FormatPriceUS(a.Threshold), helpers.FormatAge(a.CreatedAt))
		if a.Triggered() {
			line += " · " + translation.Translate("triggered")
		}
		if a.NotificationFailed {
			line += " · ⚠️ " + translation.Translate("notification failed")
		}
		b.WriteString("\n" + helpers.EscapeMarkdownV2(line))
	}
	return b.String()
}

func (h *Handler) deleteAlert(ctx context.Context, chatID int64, args string) string {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(args), "#"), 10, 64)
	if err != nil {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /delete ID"))
	}

	err = h.alerts.DeleteAlert(ctx, ownerID(chatID), id)
	if errors.Is(err, alert.ErrAlertNotFound) {
		return helpers.EscapeMarkdownV2(translation.Translate("Alert #%d not found.", id))
	}
	if err != nil {
		log.Error(err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to delete alert. Please try again later."))
	}
	return helpers.EscapeMarkdownV2(translation.Translate("🗑 Alert #%d deleted.", id))
}
