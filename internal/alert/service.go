package alert

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"price-alert-bot/internal/notification"
	"price-alert-bot/internal/types"
	"price-alert-bot/lib/retry"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PriceProvider quotes instruments. false means no price this cycle.
type PriceProvider interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool)
}

// Notifier delivers a triggered alert to its owner.
type Notifier interface {
	SendAlertTriggered(ctx context.Context, msg notification.AlertMessage) error
}

// RecipientResolver finds where an owner wants to be notified.
// ok is false when the owner has no usable address.
type RecipientResolver interface {
	Resolve(ctx context.Context, ownerID string) (r notification.Recipient, ok bool, err error)
}

// Config tunes a Service.
type Config struct {
	Workers       int
	PriceTimeout  time.Duration
	NotifyTimeout time.Duration
	Delete        retry.Policy
}

func DefaultConfig() Config {
	return Config{
		Workers:       8,
		PriceTimeout:  10 * time.Second,
		NotifyTimeout: 30 * time.Second,
		Delete:        retry.Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond},
	}
}

// Outcome is how far a single alert got through the pipeline in one cycle.
type Outcome int

const (
	OutcomeUnavailable Outcome = iota
	OutcomeNotMet
	OutcomeAlreadyHandled
	OutcomeNotified
	OutcomeNotificationFailed
	OutcomeDeleteFailed
	OutcomeFailed
)

// CycleReport summarizes one evaluation cycle.
type CycleReport struct {
	StartedAt          time.Time
	Duration           time.Duration
	NothingToDo        bool
	Active             int
	Unavailable        int
	NotMet             int
	Triggered          int
	AlreadyHandled     int
	Notified           int
	NotificationFailed int
	DeleteFailed       int
	Failed             int
	Errors             []error
}

func (r *CycleReport) record(outcome Outcome, err error) {
	switch outcome {
	case OutcomeUnavailable:
		r.Unavailable++
	case OutcomeNotMet:
		r.NotMet++
	case OutcomeAlreadyHandled:
		r.AlreadyHandled++
	case OutcomeNotified:
		r.Triggered++
		r.Notified++
	case OutcomeNotificationFailed:
		r.Triggered++
		r.NotificationFailed++
	case OutcomeDeleteFailed:
		r.Triggered++
		r.DeleteFailed++
	case OutcomeFailed:
		r.Failed++
	}
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

func (r CycleReport) String() string {
	if r.NothingToDo {
		return "no active alerts found"
	}
	return fmt.Sprintf("active=%d unavailable=%d not_met=%d triggered=%d already_handled=%d notified=%d notification_failed=%d delete_failed=%d failed=%d in %s",
		r.Active, r.Unavailable, r.NotMet, r.Triggered, r.AlreadyHandled, r.Notified, r.NotificationFailed, r.DeleteFailed, r.Failed, r.Duration)
}

// Service runs evaluation cycles over all active alerts.
type Service struct {
	store      Store
	prices     PriceProvider
	notifier   Notifier
	recipients RecipientResolver
	lifecycle  *Lifecycle
	cfg        Config
	log        *log.Entry
	now        func() time.Time
}

func NewService(store Store, prices PriceProvider, notifier Notifier, recipients RecipientResolver, cfg Config, logger *log.Entry) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("component", "alert")
	return &Service{
		store:      store,
		prices:     prices,
		notifier:   notifier,
		recipients: recipients,
		lifecycle:  NewLifecycle(store, cfg.Delete, logger),
		cfg:        cfg,
		log:        logger,
		now:        time.Now,
	}
}

// RunCycle evaluates every active alert once. Only failing to list the
// active alerts aborts the cycle; per-alert failures end up in the report.
func (s *Service) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{StartedAt: s.now()}
	s.log.Debug("🔄 Checking alerts...")

	alerts, err := s.store.FindActive(ctx)
	if err != nil {
		return report, errors.Wrap(err, "failed to fetch active alerts")
	}
	report.Active = len(alerts)
	if len(alerts) == 0 {
		report.NothingToDo = true
		report.Duration = s.now().Sub(report.StartedAt)
		return report, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Workers)

	for _, a := range alerts {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := s.processAlert(ctx, a)
			mu.Lock()
			report.record(outcome, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = s.now().Sub(report.StartedAt)
	if err := ctx.Err(); err != nil {
		return report, errors.Wrap(err, "cycle interrupted")
	}
	s.log.Debugf("✅ Alert check completed: %s", report)
	return report, nil
}

func (s *Service) processAlert(ctx context.Context, a types.Alert) (outcome Outcome, err error) {
	entry := s.log.WithFields(log.Fields{"alert_id": a.ID, "symbol": a.Symbol, "owner_id": a.OwnerID})

	var triggered *types.Alert
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			entry.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)

			if triggered != nil {
				s.lifecycle.MarkNotificationFailed(ctx, triggered, fmt.Sprintf("panic: %v", r))
			}
			outcome, err = OutcomeFailed, errors.Errorf("alert %d: panic: %v", a.ID, r)
		}
	}()

	price, ok := s.currentPrice(ctx, a.Symbol)
	if !ok {
		entry.Debug("⚠️ No price data found, skipping until next cycle")
		return OutcomeUnavailable, nil
	}

	entry.Debugf("🔍 Checking %s alert | Target: %s | Current: %s", a.Condition, a.Threshold, price)
	if !ConditionMet(a, price) {
		return OutcomeNotMet, nil
	}

	triggered, marked, err := s.lifecycle.MarkTriggered(ctx, a)
	if err != nil {
		entry.Errorf("❌ Failed to mark alert as triggered: %v", err)
		return OutcomeFailed, errors.Wrapf(err, "alert %d", a.ID)
	}
	if !marked {
		return OutcomeAlreadyHandled, nil
	}

	recipient, ok, err := s.recipients.Resolve(ctx, a.OwnerID)
	if err != nil || !ok {
		reason := fmt.Sprintf("No notification target found for user %s", a.OwnerID)
		if err != nil {
			reason = fmt.Sprintf("Could not resolve notification target for user %s: %v", a.OwnerID, err)
		}
		s.lifecycle.MarkNotificationFailed(ctx, triggered, reason)
		return OutcomeNotificationFailed, nil
	}

	msg := notification.AlertMessage{
		Recipient:    recipient,
		AlertID:      triggered.ID,
		Name:         triggered.Name,
		Symbol:       triggered.Symbol,
		Company:      triggered.Company,
		CurrentPrice: price,
		TargetPrice:  triggered.Threshold,
		Condition:    triggered.Condition,
	}
	if triggered.TriggeredAt != nil {
		msg.TriggeredAt = *triggered.TriggeredAt
	}

	if err := s.send(ctx, msg); err != nil {
		s.lifecycle.MarkNotificationFailed(ctx, triggered, err.Error())
		return OutcomeNotificationFailed, nil
	}
	entry.Infof("✅ Alert notification sent to owner %s", a.OwnerID)

	if err := s.lifecycle.DeleteNotified(ctx, triggered); err != nil {
		entry.Errorf("❌ %v", err)
		return OutcomeDeleteFailed, err
	}
	return OutcomeNotified, nil
}

func (s *Service) currentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if s.cfg.PriceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PriceTimeout)
		defer cancel()
	}
	return s.prices.CurrentPrice(ctx, symbol)
}

func (s *Service) send(ctx context.Context, msg notification.AlertMessage) error {
	if s.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		defer cancel()
	}
	return s.notifier.SendAlertTriggered(ctx, msg)
}
