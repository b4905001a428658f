package notification

import (
	"fmt"
	"time"

	"price-alert-bot/internal/types"
	"price-alert-bot/lib/helpers"
	"price-alert-bot/lib/translation"

	"github.com/shopspring/decimal"
)

// Recipient is where an alert owner wants to be notified.
type Recipient struct {
	OwnerID        string
	Email          string
	TelegramChatID int64
}

// Empty reports whether no delivery address is known.
func (r Recipient) Empty() bool {
	return r.Email == "" && r.TelegramChatID == 0
}

// AlertMessage carries everything needed to render a triggered alert.
type AlertMessage struct {
	Recipient    Recipient
	AlertID      int64
	Name         string
	Symbol       string
	Company      string
	CurrentPrice decimal.Decimal
	TargetPrice  decimal.Decimal
	Condition    types.Condition
	TriggeredAt  time.Time
}

// Subject is the one-line headline used as e-mail subject and message title.
func (m AlertMessage) Subject() string {
	target := helpers.FormatPriceUS(m.TargetPrice)
	if m.Condition == types.ConditionLower {
		return translation.Translate("📉 %s Lower Target of %s Reached", m.Symbol, target)
	}
	return translation.Translate("📈 %s Upper Target of %s Reached", m.Symbol, target)
}

// Text is the plain text body of the notification.
func (m AlertMessage) Text() string {
	company := m.Company
	if company == "" {
		company = m.Symbol
	}
	body := translation.Translate("%s (%s) hit your %s target of $%s. Current price: $%s",
		m.Symbol, company, string(m.Condition),
		helpers.FormatPriceUS(m.TargetPrice),
		helpers.FormatPriceUS(m.CurrentPrice),
	)
	if m.Name != "" {
		body += "\n" + translation.Translate("Alert: %s", m.Name)
	}
	if !m.TriggeredAt.IsZero() {
		body += "\n" + translation.Translate("Triggered at %s", m.TriggeredAt.UTC().Format("Mon, Jan 2 15:04 MST"))
	}
	return body
}

// Markdown renders the message for Telegram's MarkdownV2 parse mode.
func (m AlertMessage) Markdown() string {
	return fmt.Sprintf("🚨 *%s*\n\n%s",
		helpers.EscapeMarkdownV2(m.Subject()),
		helpers.EscapeMarkdownV2(m.Text()),
	)
}
