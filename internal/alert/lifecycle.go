package alert

import (
	"context"
	"time"

	"price-alert-bot/internal/database"
	"price-alert-bot/internal/types"
	"price-alert-bot/lib/retry"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// flagTimeout bounds the failure flag write, which ignores cycle cancellation.
const flagTimeout = 5 * time.Second

// ErrNotDeleted is returned when a notified alert matched no triggered record.
var ErrNotDeleted = errors.New("no triggered alert matched for deletion")

// Store is the persistence the pipeline drives alerts through.
type Store interface {
	FindActive(ctx context.Context) ([]types.Alert, error)
	CompareAndMarkTriggered(ctx context.Context, id int64) (*types.Alert, error)
	DeleteIfTriggered(ctx context.Context, id int64) (int64, error)
	MarkNotificationFailed(ctx context.Context, id int64, reason string) error
}

// Lifecycle performs the legal state transitions of a single alert:
// Active -> Triggered -> Deleted, with a sticky NotificationFailed flag on Triggered.
type Lifecycle struct {
	store  Store
	delete retry.Policy
	log    *log.Entry
}

func NewLifecycle(store Store, deletePolicy retry.Policy, logger *log.Entry) *Lifecycle {
	return &Lifecycle{store: store, delete: deletePolicy, log: logger}
}

// MarkTriggered disarms the alert. The bool is false when somebody else got
// there first, which is the expected outcome of overlapping cycles.
func (l *Lifecycle) MarkTriggered(ctx context.Context, a types.Alert) (*types.Alert, bool, error) {
	triggered, err := l.store.CompareAndMarkTriggered(ctx, a.ID)
	if errors.Is(err, database.ErrNotFound) {
		l.log.WithFields(log.Fields{"alert_id": a.ID, "symbol": a.Symbol}).Debug("Alert already handled elsewhere, skipping")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return triggered, true, nil
}

// MarkNotificationFailed flags a triggered alert for operator attention.
// Failing to persist the flag is logged only.
func (l *Lifecycle) MarkNotificationFailed(ctx context.Context, a *types.Alert, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flagTimeout)
	defer cancel()

	entry := l.log.WithFields(log.Fields{"alert_id": a.ID, "symbol": a.Symbol, "owner_id": a.OwnerID})
	if err := l.store.MarkNotificationFailed(ctx, a.ID, reason); err != nil {
		entry.Errorf("Failed to flag notification failure (%s): %v", reason, err)
		return
	}
	entry.Warnf("Alert marked as notificationFailed for later cleanup: %s", reason)
}

// DeleteNotified removes an alert whose notification was delivered, retrying
// transient store errors. A record that no longer matches is not retried.
func (l *Lifecycle) DeleteNotified(ctx context.Context, a *types.Alert) error {
	if !a.Triggered() {
		return errors.Wrapf(ErrNotDeleted, "alert %d was never triggered", a.ID)
	}

	// The notification is out; finish the delete even if the cycle is cancelled.
	ctx = context.WithoutCancel(ctx)
	entry := l.log.WithFields(log.Fields{"alert_id": a.ID, "symbol": a.Symbol})

	attempts := 0
	err := retry.Do(ctx, l.delete, func(attempt int) error {
		attempts = attempt
		n, err := l.store.DeleteIfTriggered(ctx, a.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return retry.Permanent(ErrNotDeleted)
		}
		return nil
	}, func(err error, attempt int, next time.Duration) {
		entry.Warnf("Delete attempt %d/%d failed, retrying in %s: %v", attempt, l.delete.MaxAttempts, next, err)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to delete triggered alert %d (%s) after %d attempt(s)",
			a.ID, a.Symbol, attempts)
	}
	return nil
}
