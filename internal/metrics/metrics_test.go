package metrics

import (
	"path/filepath"
	"testing"

	"price-alert-bot/internal/alert"
	"price-alert-bot/internal/database"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveCycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCycle(alert.CycleReport{
		Active:             5,
		Unavailable:        1,
		NotMet:             1,
		Triggered:          3,
		Notified:           1,
		NotificationFailed: 1,
		DeleteFailed:       1,
	}, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CycleErrors))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ActiveAlerts))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.AlertsChecked))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AlertsTriggered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeleteFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PricesUnavailable))
}

func TestMetrics_ObserveAbortedCycle(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ActiveAlerts.Set(7)

	m.ObserveCycle(alert.CycleReport{}, errors.New("failed to fetch active alerts"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CycleErrors))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ActiveAlerts))
}

func TestMetrics_SaveAndLoad(t *testing.T) {
	ctx := t.Context()
	store, err := database.Open(ctx, filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	before := New(prometheus.NewRegistry())
	before.ObserveCycle(alert.CycleReport{Active: 2, Triggered: 1, Notified: 1, NotMet: 1}, nil)
	before.CommandHandled("alert")
	before.CommandHandled("alert")
	before.CommandHandled("alerts")
	before.CommandHandled("")
	require.NoError(t, before.Save(ctx, store))

	after := New(prometheus.NewRegistry())
	require.NoError(t, after.Load(ctx, store))

	assert.Equal(t, 1.0, testutil.ToFloat64(after.CyclesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(after.NotificationsSent))
	assert.Equal(t, 2.0, testutil.ToFloat64(after.ActiveAlerts))
	assert.Equal(t, 4.0, testutil.ToFloat64(after.MessagesHandled))
	assert.Equal(t, 2.0, testutil.ToFloat64(after.CommandsProcessed.WithLabelValues("alert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(after.CommandsProcessed.WithLabelValues("alerts")))
}

func TestGetMetricValue(t *testing.T) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "g"})
	g.Set(3.5)
	assert.Equal(t, 3.5, GetMetricValue(g))

	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "c"})
	c.Add(2)
	assert.Equal(t, 2.0, GetMetricValue(c))
}
