package database

import (
	"context"
	"database/sql"

	"price-alert-bot/internal/types"

	"github.com/pkg/errors"
)

// UpsertUser registers a user, refreshing the telegram chat id if it already exists.
// An existing e-mail address is kept when the new record carries none.
func (s *Store) UpsertUser(ctx context.Context, user *types.User) error {
	query := `
	INSERT INTO users (id, email, telegram_chat_id, created_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		telegram_chat_id = excluded.telegram_chat_id,
		email = CASE WHEN excluded.email = '' THEN users.email ELSE excluded.email END;`

	_, err := s.db.ExecContext(ctx, query, user.ID, user.Email, user.TelegramChatID, toMillis(s.now()))
	if err != nil {
		return errors.Wrapf(err, "failed to save user %s", user.ID)
	}
	return nil
}

// SetUserEmail updates the e-mail address of a registered user.
func (s *Store) SetUserEmail(ctx context.Context, id, email string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET email = ? WHERE id = ?;`, email, id)
	if err != nil {
		return errors.Wrapf(err, "failed to set email of user %s", id)
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

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	var (
		user      types.User
		createdAt int64
	)
	query := `SELECT id, email, telegram_chat_id, created_at FROM users WHERE id = ?;`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.TelegramChatID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get user %s", id)
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}
