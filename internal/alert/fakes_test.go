package alert

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"price-alert-bot/internal/database"
	"price-alert-bot/internal/notification"
	"price-alert-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func testLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

// memStore is an in-memory Store with the same conditional semantics as the
// sqlite implementation.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	alerts      map[int64]*types.Alert
	findErr     error
	markErr     error
	deleteErrs  []error
	deleteCalls int
}

func newMemStore() *memStore {
	return &memStore{alerts: map[int64]*types.Alert{}}
}

func (m *memStore) add(owner, symbol string, condition types.Condition, threshold string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.alerts[m.nextID] = &types.Alert{
		ID:        m.nextID,
		OwnerID:   owner,
		Symbol:    symbol,
		Company:   symbol + " Inc.",
		Name:      symbol + " watch",
		Condition: condition,
		Threshold: decimal.RequireFromString(threshold),
		IsActive:  true,
	}
	return m.nextID
}

func (m *memStore) get(id int64) (types.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return types.Alert{}, false
	}
	return *a, true
}

func (m *memStore) FindActive(context.Context) ([]types.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []types.Alert
	for _, a := range m.alerts {
		if a.IsActive && a.TriggeredAt == nil {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CompareAndMarkTriggered(_ context.Context, id int64) (*types.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return nil, m.markErr
	}
	a, ok := m.alerts[id]
	if !ok || !a.IsActive || a.TriggeredAt != nil {
		return nil, database.ErrNotFound
	}
	now := time.Now()
	a.IsActive = false
	a.TriggeredAt = &now
	cp := *a
	return &cp, nil
}

func (m *memStore) DeleteIfTriggered(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if len(m.deleteErrs) > 0 {
		err := m.deleteErrs[0]
		m.deleteErrs = m.deleteErrs[1:]
		return 0, err
	}
	a, ok := m.alerts[id]
	if !ok || a.TriggeredAt == nil {
		return 0, nil
	}
	delete(m.alerts, id)
	return 1, nil
}

func (m *memStore) MarkNotificationFailed(_ context.Context, id int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || a.TriggeredAt == nil {
		return database.ErrNotFound
	}
	a.NotificationFailed = true
	a.NotificationError = reason
	return nil
}

type staticPrices map[string]decimal.Decimal

func (p staticPrices) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, bool) {
	v, ok := p[symbol]
	return v, ok
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []notification.AlertMessage
	err     error
	panicOn string
}

func (n *recordingNotifier) SendAlertTriggered(_ context.Context, msg notification.AlertMessage) error {
	if n.panicOn != "" && msg.Symbol == n.panicOn {
		panic("notifier exploded")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type staticRecipients struct {
	byOwner map[string]notification.Recipient
	err     error
}

func (r staticRecipients) Resolve(_ context.Context, ownerID string) (notification.Recipient, bool, error) {
	if r.err != nil {
		return notification.Recipient{}, false, r.err
	}
	rec, ok := r.byOwner[ownerID]
	return rec, ok && !rec.Empty(), nil
}

func everyone(owners ...string) staticRecipients {
	r := staticRecipients{byOwner: map[string]notification.Recipient{}}
	for _, o := range owners {
		r.byOwner[o] = notification.Recipient{OwnerID: o, Email: o + "@example.com"}
	}
	return r
}

var errFlaky = errors.New("database is locked")
