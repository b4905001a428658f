package metrics

import (
	"context"
	"sync"

	"price-alert-bot/internal/alert"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const namespace = "price_alerts"

// Store persists metric snapshots between restarts.
type Store interface {
	SaveMetric(ctx context.Context, metricName string, value float64) error
	GetMetric(ctx context.Context, metricName string) (float64, error)
	SaveMetricWithLabels(ctx context.Context, metricName, labelKey, labelValue string, value float64) error
	GetMetricsWithLabels(ctx context.Context, metricName string) (map[string]map[string]float64, error)
}

type Metrics struct {
	CyclesTotal          prometheus.Counter
	CycleErrors          prometheus.Counter
	AlertsChecked        prometheus.Counter
	AlertsTriggered      prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationFailures prometheus.Counter
	DeleteFailures       prometheus.Counter
	PricesUnavailable    prometheus.Counter
	ActiveAlerts         prometheus.Gauge

	MessagesHandled   prometheus.Counter
	CommandsProcessed *prometheus.CounterVec

	mu sync.Mutex
}

func pipelineCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      name,
		Help:      help,
	})
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal:          pipelineCounter("cycles_total", "The total number of evaluation cycles run"),
		CycleErrors:          pipelineCounter("cycle_errors", "The total number of evaluation cycles that were aborted"),
		AlertsChecked:        pipelineCounter("alerts_checked", "The total number of active alerts evaluated"),
		AlertsTriggered:      pipelineCounter("alerts_triggered", "The total number of alerts marked as triggered"),
		NotificationsSent:    pipelineCounter("notifications_sent", "The total number of delivered alert notifications"),
		NotificationFailures: pipelineCounter("notification_failures", "The total number of triggered alerts flagged as notificationFailed"),
		DeleteFailures:       pipelineCounter("delete_failures", "The total number of notified alerts that could not be deleted"),
		PricesUnavailable:    pipelineCounter("prices_unavailable", "The total number of alerts skipped for lack of a price"),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "active_alerts",
			Help:      "The number of active alerts seen by the last cycle",
		}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram_bot",
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		CommandsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "telegram_bot",
				Name:      "commands_processed",
				Help:      "The total number of processed commands",
			},
			[]string{"command"},
		),
	}

	for _, c := range m.counters() {
		reg.MustRegister(c.counter)
	}
	reg.MustRegister(m.ActiveAlerts, m.CommandsProcessed)
	return m
}

type namedCounter struct {
	name    string
	counter prometheus.Counter
}

func (m *Metrics) counters() []namedCounter {
	return []namedCounter{
		{"cycles_total", m.CyclesTotal},
		{"cycle_errors", m.CycleErrors},
		{"alerts_checked", m.AlertsChecked},
		{"alerts_triggered", m.AlertsTriggered},
		{"notifications_sent", m.NotificationsSent},
		{"notification_failures", m.NotificationFailures},
		{"delete_failures", m.DeleteFailures},
		{"prices_unavailable", m.PricesUnavailable},
		{"messages_handled", m.MessagesHandled},
	}
}

// ObserveCycle folds a cycle report into the counters. It matches the
// scheduler's onCycle hook.
func (m *Metrics) ObserveCycle(report alert.CycleReport, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CyclesTotal.Inc()
	if err != nil {
		m.CycleErrors.Inc()
	}
	// An aborted fetch says nothing about how many alerts are active.
	if report.NothingToDo || report.Active > 0 {
		m.ActiveAlerts.Set(float64(report.Active))
	}
	m.AlertsChecked.Add(float64(report.Unavailable + report.NotMet + report.Triggered + report.AlreadyHandled + report.Failed))
	m.AlertsTriggered.Add(float64(report.Triggered))
	m.NotificationsSent.Add(float64(report.Notified + report.DeleteFailed))
	m.NotificationFailures.Add(float64(report.NotificationFailed))
	m.DeleteFailures.Add(float64(report.DeleteFailed))
	m.PricesUnavailable.Add(float64(report.Unavailable))
}

// CommandHandled counts a bot message and the command it carried.
func (m *Metrics) CommandHandled(command string) {
	m.MessagesHandled.Inc()
	if command != "" {
		m.CommandsProcessed.WithLabelValues(command).Inc()
	}
}

// Load restores counters from the last snapshot. Missing values start at zero.
func (m *Metrics) Load(ctx context.Context, store Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs error
	for _, c := range m.counters() {
		value, err := store.GetMetric(ctx, c.name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.counter.Add(value)
	}

	active, err := store.GetMetric(ctx, "active_alerts")
	errs = multierr.Append(errs, err)
	m.ActiveAlerts.Set(active)

	commands, err := store.GetMetricsWithLabels(ctx, "commands_processed")
	errs = multierr.Append(errs, err)
	for _, values := range commands {
		for command, value := range values {
			m.CommandsProcessed.WithLabelValues(command).Add(value)
		}
	}

	if errs == nil {
		log.Debug("Metrics loaded from database.")
	}
	return errs
}

// Save writes a snapshot of all metrics.
func (m *Metrics) Save(ctx context.Context, store Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs error
	for _, c := range m.counters() {
		errs = multierr.Append(errs, store.SaveMetric(ctx, c.name, GetMetricValue(c.counter)))
	}
	errs = multierr.Append(errs, store.SaveMetric(ctx, "active_alerts", GetMetricValue(m.ActiveAlerts)))

	metricChan := make(chan prometheus.Metric, 1)
	go func() {
		m.CommandsProcessed.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read commands_processed metric: %v", err)
			continue
		}
		var command string
		for _, label := range metricProto.Label {
			if label.GetName() == "command" {
				command = label.GetValue()
			}
		}
		errs = multierr.Append(errs, store.SaveMetricWithLabels(ctx, "commands_processed", "command", command, metricProto.GetCounter().GetValue()))
	}

	if errs == nil {
		log.Debug("Metrics saved to database.")
	}
	return errs
}

// GetMetricValue reads the current value of a single counter or gauge.
func GetMetricValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Errorf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	}
	if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}
