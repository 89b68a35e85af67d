package redis

import (
	"context"
	"fmt"
	"log"

	json "github.com/goccy/go-json"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// SubscribeAlerts forwards alerts published on the alert channel to out.
// Blocks until ctx is cancelled.
func (s *Store) SubscribeAlerts(ctx context.Context, out chan<- model.Alert) error {
	pubsub := s.client.Subscribe(ctx, s.AlertChannel())
	defer pubsub.Close()

	// Wait for confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", s.AlertChannel(), err)
	}
	log.Printf("[redis] subscribed to %s", s.AlertChannel())

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var a model.Alert
			if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
				log.Printf("[redis] bad alert payload on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- a:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
