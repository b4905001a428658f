package notification

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// ErrNoChannel is returned when none of the configured channels can reach the recipient.
var ErrNoChannel = errors.New("no delivery channel for recipient")

// Channel is one way of reaching a user.
type Channel interface {
	Name() string
	Accepts(r Recipient) bool
	Send(ctx context.Context, msg AlertMessage) error
}

// Router fans an alert out to every channel that accepts its recipient.
// Delivery counts as successful when at least one channel succeeded.
type Router struct {
	channels []Channel
}

func NewRouter(channels ...Channel) *Router {
	var enabled []Channel
	for _, ch := range channels {
		if ch != nil {
			enabled = append(enabled, ch)
		}
	}
	return &Router{channels: enabled}
}

// Channels lists the names of the enabled channels.
func (r *Router) Channels() []string {
	names := make([]string, 0, len(r.channels))
	for _, ch := range r.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (r *Router) SendAlertTriggered(ctx context.Context, msg AlertMessage) error {
	var (
		errs      error
		attempted int
		delivered int
	)
	for _, ch := range r.channels {
		if !ch.Accepts(msg.Recipient) {
			continue
		}
		attempted++
		if err := ch.Send(ctx, msg); err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, ch.Name()))
			continue
		}
		delivered++
	}

	switch {
	case attempted == 0:
		return errors.Wrapf(ErrNoChannel, "owner %s", msg.Recipient.OwnerID)
	case delivered == 0:
		return errs
	case errs != nil:
		log.WithFields(log.Fields{"alert_id": msg.AlertID, "owner_id": msg.Recipient.OwnerID}).
			Warnf("Alert delivered on %d of %d channels: %v", delivered, attempted, errs)
	}
	return nil
}
