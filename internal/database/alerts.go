package database

import (
	"context"
	"database/sql"

	"price-alert-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const alertColumns = `id, owner_id, symbol, company, name, condition_type, threshold,
	is_active, triggered_at, notification_failed, notification_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (types.Alert, error) {
	var (
		alert       types.Alert
		condition   string
		threshold   string
		triggeredAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(&alert.ID, &alert.OwnerID, &alert.Symbol, &alert.Company, &alert.Name, &condition, &threshold,
		&alert.IsActive, &triggeredAt, &alert.NotificationFailed, &alert.NotificationError, &createdAt, &updatedAt)
	if err != nil {
		return types.Alert{}, err
	}

	alert.Condition = types.Condition(condition)
	alert.Threshold, err = decimal.NewFromString(threshold)
	if err != nil {
		return types.Alert{}, errors.Wrapf(err, "alert %d has malformed threshold %q", alert.ID, threshold)
	}
	if triggeredAt.Valid {
		t := fromMillis(triggeredAt.Int64)
		alert.TriggeredAt = &t
	}
	alert.CreatedAt = fromMillis(createdAt)
	alert.UpdatedAt = fromMillis(updatedAt)
	return alert, nil
}

func scanAlerts(rows *sql.Rows) ([]types.Alert, error) {
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// InsertAlert saves a new active alert and fills in its ID and timestamps.
// The threshold is stored in canonical form so equal values collide on the unique index.
func (s *Store) InsertAlert(ctx context.Context, alert *types.Alert) error {
	now := s.now()
	query := `
	INSERT INTO alerts (owner_id, symbol, company, name, condition_type, threshold, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?);`

	res, err := s.db.ExecContext(ctx, query, alert.OwnerID, alert.Symbol, alert.Company, alert.Name,
		string(alert.Condition), alert.Threshold.String(), toMillis(now), toMillis(now))
	if err != nil {
		switch constraintCode(err) {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrDuplicate
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return errors.Wrapf(ErrInvalid, "threshold %s must be greater than 0", alert.Threshold)
		}
		return errors.Wrap(err, "failed to insert alert")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read alert id")
	}

	alert.ID = id
	alert.IsActive = true
	alert.TriggeredAt = nil
	alert.CreatedAt = fromMillis(toMillis(now))
	alert.UpdatedAt = alert.CreatedAt

	log.WithFields(log.Fields{"alert_id": id, "owner_id": alert.OwnerID, "symbol": alert.Symbol}).Debug("Alert inserted")
	return nil
}

// FindActive returns every alert that is still armed.
func (s *Store) FindActive(ctx context.Context) ([]types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE is_active = 1 AND triggered_at IS NULL ORDER BY id;`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query active alerts")
	}
	return scanAlerts(rows)
}

// CompareAndMarkTriggered disarms the alert in a single conditional statement.
// Only one caller ever gets the updated record back, everyone else gets ErrNotFound.
func (s *Store) CompareAndMarkTriggered(ctx context.Context, id int64) (*types.Alert, error) {
	now := toMillis(s.now())
	query := `
	UPDATE alerts SET is_active = 0, triggered_at = ?, updated_at = ?
	WHERE id = ? AND is_active = 1 AND triggered_at IS NULL
	RETURNING ` + alertColumns + `;`

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, now, now, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mark alert %d as triggered", id)
	}
	return &alert, nil
}

// DeleteIfTriggered removes the alert only when it has already fired.
func (s *Store) DeleteIfTriggered(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ? AND triggered_at IS NOT NULL;`, id)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to delete triggered alert %d", id)
	}
	return res.RowsAffected()
}

// MarkNotificationFailed flags a triggered alert whose notification could not be delivered.
// Alerts that are still armed are left alone and reported as ErrNotFound.
func (s *Store) MarkNotificationFailed(ctx context.Context, id int64, reason string) error {
	query := `
	UPDATE alerts SET notification_failed = 1, notification_error = ?, updated_at = ?
	WHERE id = ? AND triggered_at IS NOT NULL;`
	res, err := s.db.ExecContext(ctx, query, reason, toMillis(s.now()), id)
	if err != nil {
		return errors.Wrapf(err, "failed to flag alert %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAlert fetches a single alert by id.
func (s *Store) GetAlert(ctx context.Context, id int64) (*types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?;`
	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get alert %d", id)
	}
	return &alert, nil
}

// AlertsByOwner lists a user's alerts, newest first.
func (s *Store) AlertsByOwner(ctx context.Context, ownerID string) ([]types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE owner_id = ? ORDER BY created_at DESC, id DESC;`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query alerts for owner %s", ownerID)
	}
	return scanAlerts(rows)
}

// DeleteAlert removes an alert on behalf of its owner.
func (s *Store) DeleteAlert(ctx context.Context, ownerID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ? AND owner_id = ?;`, id, ownerID)
	if err != nil {
		return errors.Wrapf(err, "failed to delete alert %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// constraintCode returns the extended sqlite result code of err, or 0.
func constraintCode(err error) int {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0
	}
	return sqliteErr.Code()
}
