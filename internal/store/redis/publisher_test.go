package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

type fakeBackend struct {
	mu   sync.Mutex
	down bool
	sent [][]byte
}

func (f *fakeBackend) publish(cb *CircuitBreaker) func(context.Context, []byte) error {
	return func(_ context.Context, data []byte) error {
		return cb.Execute(func() error {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.down {
				return errors.New("connection refused")
			}
			f.sent = append(f.sent, data)
			return nil
		})
	}
}

func (f *fakeBackend) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestBufferedPublisher_BuffersWhileOpenAndFlushesOnClose(t *testing.T) {
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	backend := &fakeBackend{down: true}

	var buffered int
	bp := newBufferedPublisher(context.Background(), backend.publish(cb), cb, 10)
	bp.OnBuffer = func() { buffered++ }

	alert := model.Alert{ID: "1", Ticker: "AAPL", Type: model.AlertGoldenCross}

	// First failure trips the breaker and surfaces the error.
	err := bp.PublishAlert(context.Background(), alert)
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.CurrentState())

	// While open, alerts are buffered and reported as accepted.
	require.NoError(t, bp.PublishAlert(context.Background(), alert))
	assert.Equal(t, 1, bp.PendingCount())
	assert.Equal(t, 1, buffered)

	// Recover: the half-open probe succeeds, the circuit closes and the buffer flushes.
	backend.setDown(false)
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, bp.PublishAlert(context.Background(), alert))

	require.Eventually(t, func() bool {
		return bp.PendingCount() == 0 && backend.count() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestBufferedPublisher_DropsOldestWhenFull(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	backend := &fakeBackend{down: true}
	bp := newBufferedPublisher(context.Background(), backend.publish(cb), cb, 2)

	_ = bp.PublishAlert(context.Background(), model.Alert{ID: "trip"})
	for i := 0; i < 5; i++ {
		require.NoError(t, bp.PublishAlert(context.Background(), model.Alert{ID: "x"}))
	}
	assert.Equal(t, 2, bp.PendingCount())
}

func TestStore_UnreachableRedisDegradesToMiss(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	s := NewWithClient(client, Config{MaxFailures: 1, ResetTimeout: time.Hour})
	defer s.Close()

	ctx := context.Background()
	_, err := s.GetBundle(ctx, "k")
	require.Error(t, err)

	b, err := s.GetBundle(ctx, "k")
	require.NoError(t, err, "open breaker should read as a miss")
	assert.Nil(t, b)

	err = s.SetBundle(ctx, "k", &model.IndicatorBundle{Ticker: "X"})
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestStore_Keys(t *testing.T) {
	s := NewWithClient(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}), Config{})
	defer s.Close()

	assert.Equal(t, "tad:bundle:AAPL:1y/1d:abc", s.BundleKey("AAPL", "1y/1d", "abc"))
	assert.Equal(t, "tad:pub:alerts", s.AlertChannel())
}
