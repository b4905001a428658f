package alert

import (
	"context"

	"price-alert-bot/internal/database"
	"price-alert-bot/internal/notification"
	"price-alert-bot/internal/types"

	"github.com/pkg/errors"
)

// UserStore looks up registered users.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*types.User, error)
}

// UserRecipients resolves notification targets from the user records.
type UserRecipients struct {
	users UserStore
}

func NewUserRecipients(users UserStore) *UserRecipients {
	return &UserRecipients{users: users}
}

func (u *UserRecipients) Resolve(ctx context.Context, ownerID string) (notification.Recipient, bool, error) {
	user, err := u.users.GetUser(ctx, ownerID)
	if errors.Is(err, database.ErrNotFound) {
		return notification.Recipient{}, false, nil
	}
	if err != nil {
		return notification.Recipient{}, false, err
	}

	r := notification.Recipient{
		OwnerID:        user.ID,
		Email:          user.Email,
		TelegramChatID: user.TelegramChatID,
	}
	return r, !r.Empty(), nil
}
