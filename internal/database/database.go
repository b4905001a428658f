package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a conditional statement matched no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalid is returned when a record fails a CHECK constraint.
	ErrInvalid = errors.New("invalid record")
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	company TEXT NOT NULL,
	name TEXT NOT NULL,
	condition_type TEXT NOT NULL,
	threshold TEXT NOT NULL CHECK (CAST(threshold AS REAL) > 0),
	is_active INTEGER NOT NULL DEFAULT 1,
	triggered_at INTEGER DEFAULT NULL,
	notification_failed INTEGER NOT NULL DEFAULT 0,
	notification_error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS alerts_owner_symbol_condition_threshold
	ON alerts (owner_id, symbol, condition_type, threshold);
CREATE INDEX IF NOT EXISTS alerts_active_triggered
	ON alerts (is_active, triggered_at);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	telegram_chat_id INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metrics (
	metric_name TEXT NOT NULL,
	label_key TEXT DEFAULT NULL,
	label_value TEXT DEFAULT NULL,
	metric_value REAL NOT NULL,
	PRIMARY KEY (metric_name, label_key, label_value)
);`

// Store is the SQLite backed persistence for alerts, users and metric snapshots.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the database file at path and makes sure the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	// SQLite allows a single writer, queueing in the pool is cheaper than SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	log.Debugf("Database initialized successfully at %s", path)
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
