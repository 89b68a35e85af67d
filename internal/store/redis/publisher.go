package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// BufferedPublisher publishes alerts through the store's circuit breaker.
// While the circuit is open, alerts are buffered locally and replayed
// once it closes again. It implements model.AlertPublisher.
type BufferedPublisher struct {
	publish func(ctx context.Context, data []byte) error
	cb      *CircuitBreaker
	ctx     context.Context

	mu     sync.Mutex
	buffer [][]byte
	maxBuf int

	// Callbacks
	OnBuffer func()          // called when an alert is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered alerts
}

// NewBufferedPublisher creates a publisher for s. ctx bounds background flushes.
func NewBufferedPublisher(ctx context.Context, s *Store, maxBufferSize int) *BufferedPublisher {
	return newBufferedPublisher(ctx, s.publishAlert, s.cb, maxBufferSize)
}

func newBufferedPublisher(ctx context.Context, publish func(context.Context, []byte) error, cb *CircuitBreaker, maxBufferSize int) *BufferedPublisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 1000
	}
	bp := &BufferedPublisher{
		publish: publish,
		cb:      cb,
		ctx:     ctx,
		buffer:  make([][]byte, 0, 16),
		maxBuf:  maxBufferSize,
	}

	// Flush on circuit close
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bp.flush()
		}
	}
	return bp
}

// PublishAlert implements model.AlertPublisher. An open circuit buffers the
// alert and reports success.
func (bp *BufferedPublisher) PublishAlert(ctx context.Context, a model.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	err = bp.publish(ctx, data)
	if errors.Is(err, ErrCircuitOpen) {
		bp.bufferWrite(data)
		return nil
	}
	return err
}

func (bp *BufferedPublisher) bufferWrite(data []byte) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if len(bp.buffer) >= bp.maxBuf {
		// Buffer full: drop oldest
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, data)

	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// flush replays all buffered alerts.
func (bp *BufferedPublisher) flush() {
	bp.mu.Lock()
	if len(bp.buffer) == 0 {
		bp.mu.Unlock()
		return
	}
	toFlush := bp.buffer
	bp.buffer = make([][]byte, 0, 16)
	bp.mu.Unlock()

	flushed := 0
	for _, data := range toFlush {
		if err := bp.publish(bp.ctx, data); err != nil {
			log.Printf("[redis] flush alert failed: %v", err)
			bp.bufferWrite(data)
			continue
		}
		flushed++
	}

	log.Printf("[redis] flushed %d buffered alerts", flushed)
	if bp.OnFlush != nil {
		bp.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered alerts waiting to be flushed.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}
