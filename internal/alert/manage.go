package alert

import (
	"context"
	"fmt"
	"strings"

	"price-alert-bot/internal/database"
	"price-alert-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSymbol    = errors.New("symbol is required")
	ErrInvalidCondition = errors.New("condition must be upper or lower")
	ErrInvalidThreshold = errors.New("threshold must be greater than 0")
	ErrDuplicateAlert   = errors.New("alert already exists")
	ErrAlertNotFound    = errors.New("alert not found")
)

// AlertInput is what a user supplies to create an alert.
type AlertInput struct {
	Symbol    string
	Company   string
	Name      string
	Condition types.Condition
	Threshold decimal.Decimal
}

// ManageStore is the persistence behind user-initiated alert management.
type ManageStore interface {
	InsertAlert(ctx context.Context, alert *types.Alert) error
	AlertsByOwner(ctx context.Context, ownerID string) ([]types.Alert, error)
	DeleteAlert(ctx context.Context, ownerID string, id int64) error
}

// CompanyDescriber resolves display names for symbols.
type CompanyDescriber interface {
	CompanyName(ctx context.Context, symbol string) (string, bool)
}

// Manager implements the user facing create/list/delete operations.
type Manager struct {
	store     ManageStore
	describer CompanyDescriber
}

// NewManager creates a Manager. describer may be nil.
func NewManager(store ManageStore, describer CompanyDescriber) *Manager {
	return &Manager{store: store, describer: describer}
}

func (m *Manager) CreateAlert(ctx context.Context, ownerID string, in AlertInput) (*types.Alert, error) {
	symbol := types.NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	if !in.Condition.Valid() {
		return nil, ErrInvalidCondition
	}
	if !in.Threshold.IsPositive() {
		return nil, ErrInvalidThreshold
	}

	company := strings.TrimSpace(in.Company)
	if company == "" && m.describer != nil {
		company, _ = m.describer.CompanyName(ctx, symbol)
	}
	if company == "" {
		company = symbol
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("%s %s %s", symbol, in.Condition, in.Threshold)
	}

	alert := &types.Alert{
		OwnerID:   ownerID,
		Symbol:    symbol,
		Company:   company,
		Name:      name,
		Condition: in.Condition,
		Threshold: in.Threshold,
	}

	err := m.store.InsertAlert(ctx, alert)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, ErrDuplicateAlert
	}
	if errors.Is(err, database.ErrInvalid) {
		return nil, ErrInvalidThreshold
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create alert")
	}
	return alert, nil
}

func (m *Manager) ListAlerts(ctx context.Context, ownerID string) ([]types.Alert, error) {
	alerts, err := m.store.AlertsByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user alerts")
	}
	return alerts, nil
}

func (m *Manager) DeleteAlert(ctx context.Context, ownerID string, id int64) error {
	err := m.store.DeleteAlert(ctx, ownerID, id)
	if errors.Is(err, database.ErrNotFound) {
		return ErrAlertNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to delete alert")
	}
	return nil
}
