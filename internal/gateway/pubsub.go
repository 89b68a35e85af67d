package gateway

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

var errSubscriptionClosed = errors.New("subscription closed")

// AlertSource streams alerts published by other processes.
// *redis.Store implements it.
type AlertSource interface {
	SubscribeAlerts(ctx context.Context, out chan<- model.Alert) error
}

// PubSubRouter relays alerts from an AlertSource into the hub, so every
// gateway instance sees alerts raised by any scheduler.
type PubSubRouter struct {
	hub *Hub
	src AlertSource
}

// NewPubSubRouter creates a router that feeds hub from src.
func NewPubSubRouter(hub *Hub, src AlertSource) *PubSubRouter {
	return &PubSubRouter{hub: hub, src: src}
}

// Run subscribes and resubscribes with exponential backoff until ctx is cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	alerts := make(chan model.Alert, 64)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case a := <-alerts:
				r.hub.BroadcastAlert(a)
			}
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	op := func() error {
		started := time.Now()
		err := r.src.SubscribeAlerts(ctx, alerts)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if time.Since(started) > bo.MaxInterval {
			bo.Reset()
		}
		if err == nil {
			err = errSubscriptionClosed
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("[gateway] alert subscription lost: %v (retry in %s)", err, wait.Round(time.Millisecond))
	}
	_ = backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}

