package internal

import (
	"context"

	"go.uber.org/multierr"

	"github.com/DrGermanius/bookstore/internal/model"
)

type IBroadcaster interface {
	Broadcast(context.Context, model.Notification) error
}

type IMailer interface {
	SendOrderConfirmation(context.Context, model.Contact, model.OrderConfirmation) error
}

// MultiBroadcaster hands every notification to all of its transports. One
// failing transport does not stop the others.
type MultiBroadcaster []IBroadcaster

func (m MultiBroadcaster) Broadcast(ctx context.Context, n model.Notification) error {
	var err error
	for _, b := range m {
		err = multierr.Append(err, b.Broadcast(ctx, n))
	}
	return err
}
