// Package notification delivers alerts to external channels
// (Telegram, chat webhooks, logs).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert model.Alert) error
}

// Named is implemented by notifiers that report a backend label for metrics.
type Named interface {
	Name() string
}

// NameOf returns the backend label of n.
func NameOf(n Notifier) string {
	if nn, ok := n.(Named); ok {
		return nn.Name()
	}
	return fmt.Sprintf("%T", n)
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, alert model.Alert) error {
	log.Printf("[notify] %s", Title(alert))
	return nil
}

// Multi fans an alert out to several backends. Every backend is tried; the
// failures are joined into the returned error.
type Multi struct {
	notifiers []Notifier
	onError   func(name string, err error)
}

// NewMulti combines notifiers. onError, if non-nil, is called per failure.
func NewMulti(onError func(name string, err error), notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, onError: onError}
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of backends.
func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Send(ctx context.Context, alert model.Alert) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			name := NameOf(n)
			if m.onError != nil {
				m.onError(name, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
