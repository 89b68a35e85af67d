package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// StatusError is a non-2xx reply from the webhook endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook: unexpected status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether the endpoint may accept the same post later.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// WebhookNotifier posts alerts to a chat incoming-webhook endpoint
// (Google Chat, Slack compatible) as {"text": "..."}. Network errors, 429
// and 5xx replies are retried with exponential backoff; other statuses fail
// at once.
type WebhookNotifier struct {
	url        string
	client     *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewWebhookNotifier creates a webhook notifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, alert model.Alert) error {
	body, err := json.Marshal(map[string]string{
		"text": strings.TrimSpace(Text(alert)),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	attempts := 0
	op := func() error {
		attempts++
		err := w.post(ctx, body)
		if se, ok := err.(*StatusError); ok && !se.retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(), w.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		log.Printf("[webhook] attempt %d failed: %v (retry in %s)", attempts, err, wait)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return err
	}

	log.Printf("[webhook] sent alert: %s", Title(alert))
	return nil
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("webhook: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
