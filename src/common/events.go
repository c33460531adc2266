package common

import (
	"connectwork/src/types"
	"context"
	"errors"
	"log"
	"time"
)

// Publisher delivers payment events to one downstream channel.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ev types.PaymentEvent) error
}

// FanOut publishes to every publisher and joins their errors.
type FanOut []Publisher

func (f FanOut) Name() string {
	return "fanout"
}

func (f FanOut) Publish(ctx context.Context, ev types.PaymentEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			log.Printf("[events] %s: could not publish %s for %s: %s\n", p.Name(), ev.Type, ev.CheckoutRequestID, err.Error())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func paymentEventType(status types.PaymentStatus) string {
	return "payment." + string(status)
}

func newPaymentEvent(status types.PaymentStatus, checkoutRequestID string) types.PaymentEvent {
	return types.PaymentEvent{
		Type:              paymentEventType(status),
		CheckoutRequestID: checkoutRequestID,
		Status:            status,
		OccurredAt:        time.Now(),
	}
}
