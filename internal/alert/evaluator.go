package alert

import (
	"price-alert-bot/internal/types"

	"github.com/shopspring/decimal"
)

// ConditionMet reports whether price satisfies the alert's threshold.
// Both directions are inclusive: touching the threshold fires the alert.
func ConditionMet(alert types.Alert, price decimal.Decimal) bool {
	switch alert.Condition {
	case types.ConditionUpper:
		return price.GreaterThanOrEqual(alert.Threshold)
	case types.ConditionLower:
		return price.LessThanOrEqual(alert.Threshold)
	default:
		return false
	}
}
