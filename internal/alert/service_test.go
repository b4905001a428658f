package alert

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"price-alert-bot/internal/database"
	"price-alert-bot/internal/notification"
	"price-alert-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.PriceTimeout = time.Second
	cfg.NotifyTimeout = time.Second
	cfg.Delete = fastDelete
	return cfg
}

func price(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestService_NotifiesAndDeletes(t *testing.T) {
	store := newMemStore()
	id := store.add("u1", "AAPL", types.ConditionUpper, "150.00")
	notifier := &recordingNotifier{}
	svc := NewService(store, staticPrices{"AAPL": price("150.50")}, notifier, everyone("u1"), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Active)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.Notified)
	assert.Empty(t, report.Errors)

	require.Len(t, notifier.sent, 1)
	msg := notifier.sent[0]
	assert.Equal(t, id, msg.AlertID)
	assert.Equal(t, "u1@example.com", msg.Recipient.Email)
	assert.True(t, price("150.50").Equal(msg.CurrentPrice))
	assert.True(t, price("150").Equal(msg.TargetPrice))
	assert.Equal(t, types.ConditionUpper, msg.Condition)
	assert.False(t, msg.TriggeredAt.IsZero())

	_, exists := store.get(id)
	assert.False(t, exists)
}

func TestService_ConditionNotMet(t *testing.T) {
	store := newMemStore()
	id := store.add("u1", "AAPL", types.ConditionUpper, "150.00")
	notifier := &recordingNotifier{}
	svc := NewService(store, staticPrices{"AAPL": price("149.99")}, notifier, everyone("u1"), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NotMet)
	assert.Zero(t, notifier.count())

	a, exists := store.get(id)
	require.True(t, exists)
	assert.True(t, a.IsActive)
	assert.Nil(t, a.TriggeredAt)
}

func TestService_SkipsUnavailablePrice(t *testing.T) {
	store := newMemStore()
	store.add("u1", "AAPL", types.ConditionUpper, "150")
	store.add("u1", "MSFT", types.ConditionLower, "500")
	notifier := &recordingNotifier{}
	svc := NewService(store, staticPrices{"MSFT": price("420")}, notifier, everyone("u1"), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unavailable)
	assert.Equal(t, 1, report.Notified)

	active, err := store.FindActive(t.Context())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "AAPL", active[0].Symbol)
}

func TestService_NotificationFailureKeepsFlaggedRecord(t *testing.T) {
	store := newMemStore()
	id := store.add("u1", "AAPL", types.ConditionUpper, "150")
	notifier := &recordingNotifier{err: errors.New("smtp: 421 service not available")}
	svc := NewService(store, staticPrices{"AAPL": price("200")}, notifier, everyone("u1"), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.NotificationFailed)
	assert.Zero(t, store.deleteCalls)

	a, exists := store.get(id)
	require.True(t, exists)
	assert.True(t, a.Triggered())
	assert.True(t, a.NotificationFailed)
	assert.Contains(t, a.NotificationError, "421")

	// Never retried: the next cycle does not see it.
	notifier.err = nil
	report, err = svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.True(t, report.NothingToDo)
	assert.Zero(t, notifier.count())
}

func TestService_MissingRecipientFlagsAlert(t *testing.T) {
	store := newMemStore()
	id := store.add("ghost", "AAPL", types.ConditionUpper, "150")
	notifier := &recordingNotifier{}
	svc := NewService(store, staticPrices{"AAPL": price("150")}, notifier, everyone("u1"), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NotificationFailed)
	assert.Zero(t, notifier.count())

	a, exists := store.get(id)
	require.True(t, exists)
	assert.True(t, a.NotificationFailed)
	assert.Equal(t, "No notification target found for user ghost", a.NotificationError)
}

func TestService_RecipientLookupErrorFlagsAlert(t *testing.T) {
	store := newMemStore()
	id := store.add("u1", "AAPL", types.ConditionUpper, "150")
	recipients := staticRecipients{err: errFlaky}
	svc := NewService(store, staticPrices{"AAPL": price("151")}, &recordingNotifier{}, recipients, testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NotificationFailed)

	a, _ := store.get(id)
	assert.True(t, a.NotificationFailed)
	assert.Contains(t, a.NotificationError, "database is locked")
}

func TestService_DeleteFailureIsEscalated(t *testing.T) {
	store := newMemStore()
	store.deleteErrs = []error{errFlaky, errFlaky, errFlaky}
	id := store.add("u1", "AAPL", types.ConditionUpper, "150")
	notifier := &recordingNotifier{}
	svc := NewService(store, staticPrices{"AAPL": price("151")}, notifier, everyone("u1"), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeleteFailed)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], errFlaky)
	assert.Equal(t, 1, notifier.count())

	a, exists := store.get(id)
	require.True(t, exists)
	assert.True(t, a.Triggered())
	assert.False(t, a.NotificationFailed)
}

func TestService_MarkErrorLeavesAlertActive(t *testing.T) {
	store := newMemStore()
	store.markErr = errFlaky
	id := store.add("u1", "AAPL", types.ConditionUpper, "150")
	notifier := &recordingNotifier{}
	svc := NewService(store, staticPrices{"AAPL": price("151")}, notifier, everyone("u1"), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, notifier.count())

	a, _ := store.get(id)
	assert.True(t, a.IsActive)
}

func TestService_FindActiveErrorAbortsCycle(t *testing.T) {
	store := newMemStore()
	store.findErr = errFlaky
	svc := NewService(store, staticPrices{}, &recordingNotifier{}, everyone(), testConfig(), testLogger())

	_, err := svc.RunCycle(t.Context())
	assert.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "failed to fetch active alerts")
}

func TestService_NothingToDo(t *testing.T) {
	svc := NewService(newMemStore(), staticPrices{}, &recordingNotifier{}, everyone(), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.True(t, report.NothingToDo)
	assert.Equal(t, "no active alerts found", report.String())
}

func TestService_PanicIsIsolated(t *testing.T) {
	store := newMemStore()
	bad := store.add("u1", "BOOM", types.ConditionUpper, "1")
	good := store.add("u1", "AAPL", types.ConditionUpper, "150")
	notifier := &recordingNotifier{panicOn: "BOOM"}
	prices := staticPrices{"BOOM": price("2"), "AAPL": price("151")}
	svc := NewService(store, prices, notifier, everyone("u1"), testConfig(), testLogger())

	report, err := svc.RunCycle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Notified)

	a, exists := store.get(bad)
	require.True(t, exists)
	assert.True(t, a.NotificationFailed)
	assert.Contains(t, a.NotificationError, "panic")

	_, exists = store.get(good)
	assert.False(t, exists)
}

func TestService_CancelledCycle(t *testing.T) {
	store := newMemStore()
	store.add("u1", "AAPL", types.ConditionUpper, "150")
	svc := NewService(store, staticPrices{"AAPL": price("151")}, &recordingNotifier{}, everyone("u1"), testConfig(), testLogger())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := svc.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingNotifier struct {
	mu    sync.Mutex
	perID map[int64]int
	delay time.Duration
}

func (n *countingNotifier) SendAlertTriggered(_ context.Context, msg notification.AlertMessage) error {
	time.Sleep(n.delay)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.perID[msg.AlertID]++
	return nil
}

func TestService_OverlappingCyclesNotifyOnce(t *testing.T) {
	store, err := database.Open(t.Context(), filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	symbols := []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN"}
	prices := staticPrices{}
	for _, s := range symbols {
		require.NoError(t, store.InsertAlert(t.Context(), &types.Alert{
			OwnerID: "u1", Symbol: s, Company: s, Name: s,
			Condition: types.ConditionLower, Threshold: price("100"),
		}))
		prices[s] = price("90")
	}

	notifier := &countingNotifier{perID: map[int64]int{}, delay: 5 * time.Millisecond}
	svc := NewService(store, prices, notifier, everyone("u1"), testConfig(), testLogger())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RunCycle(t.Context())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, notifier.perID, len(symbols))
	for id, n := range notifier.perID {
		assert.Equal(t, 1, n, "alert %d notified %d times", id, n)
	}

	active, err := store.FindActive(t.Context())
	require.NoError(t, err)
	assert.Empty(t, active)
}
