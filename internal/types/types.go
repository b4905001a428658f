package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Condition is the comparison direction of an alert
type Condition string

const (
	ConditionUpper Condition = "upper"
	ConditionLower Condition = "lower"
)

// ParseCondition accepts the stored names plus the usual shorthands (>=, above, ...)
func ParseCondition(s string) (Condition, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upper", "above", ">", ">=":
		return ConditionUpper, true
	case "lower", "below", "<", "<=":
		return ConditionLower, true
	}
	return "", false
}

func (c Condition) Valid() bool {
	return c == ConditionUpper || c == ConditionLower
}

// Alert is a one-shot price threshold rule owned by a user
type Alert struct {
	ID                 int64           `json:"id"`
	OwnerID            string          `json:"owner_id"`
	Symbol             string          `json:"symbol"`
	Company            string          `json:"company"`
	Name               string          `json:"name"`
	Condition          Condition       `json:"condition"`
	Threshold          decimal.Decimal `json:"threshold"`
	IsActive           bool            `json:"is_active"`
	TriggeredAt        *time.Time      `json:"triggered_at,omitempty"`
	NotificationFailed bool            `json:"notification_failed"`
	NotificationError  string          `json:"notification_error,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Triggered reports whether the alert has left the Active state.
func (a Alert) Triggered() bool {
	return a.TriggeredAt != nil
}

// User is the owner of alerts and the source of notification targets
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email,omitempty"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NormalizeSymbol trims and upper-cases an instrument code.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
