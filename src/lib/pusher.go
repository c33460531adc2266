package lib

import (
	"connectwork/src/config"
	"connectwork/src/types"
	"context"
	"fmt"

	"github.com/pusher/pusher-http-go/v5"
)

func NewPusherClient(cfg config.Pusher) *pusher.Client {
	return &pusher.Client{
		AppID:   cfg.AppID,
		Key:     cfg.Key,
		Secret:  cfg.Secret,
		Cluster: cfg.Cluster,
		Secure:  true,
	}
}

type pusherTrigger interface {
	Trigger(channel string, eventName string, data interface{}) error
}

// PusherNotifier pushes settled payments to the customer's and the worker's open screens.
type PusherNotifier struct {
	client pusherTrigger
}

func NewPusherNotifier(client pusherTrigger) *PusherNotifier {
	return &PusherNotifier{client: client}
}

func (p *PusherNotifier) Name() string {
	return "pusher"
}

func (p *PusherNotifier) Publish(ctx context.Context, ev types.PaymentEvent) error {
	eventName := fmt.Sprintf("payment.%s", ev.Status)
	for _, uid := range []string{ev.CustomerID, ev.WorkerID} {
		if uid == "" {
			continue
		}
		if err := p.client.Trigger("payments-"+uid, eventName, ev); err != nil {
			return err
		}
	}
	return nil
}
