package gateway

import "sync"

// ReplayBuffer keeps the most recent envelopes of one channel, addressed by
// channel_seq. Channel sequences are contiguous from 1, so the frame for seq
// lives in slot seq % capacity and older frames are overwritten in place.
type ReplayBuffer struct {
	mu     sync.RWMutex
	frames [][]byte
	last   int64 // highest seq pushed, 0 when empty
}

// NewReplayBuffer creates a buffer holding up to capacity frames.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = replayCapacity
	}
	return &ReplayBuffer{frames: make([][]byte, capacity)}
}

// Push stores a copy of frame under seq. Seqs must arrive in increasing order.
func (rb *ReplayBuffer) Push(seq int64, frame []byte) {
	cp := append([]byte(nil), frame...)

	rb.mu.Lock()
	rb.frames[rb.slot(seq)] = cp
	rb.last = seq
	rb.mu.Unlock()
}

// Since returns the buffered frames with seq > after, oldest first, and how
// many frames in that range were already evicted.
func (rb *ReplayBuffer) Since(after int64) (frames [][]byte, missed int64) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if after < 0 {
		after = 0
	}
	if after >= rb.last {
		return nil, 0
	}
	first := rb.oldest()
	if after+1 < first {
		missed = first - after - 1
		after = first - 1
	}
	frames = make([][]byte, 0, rb.last-after)
	for seq := after + 1; seq <= rb.last; seq++ {
		frames = append(frames, rb.frames[rb.slot(seq)])
	}
	return frames, missed
}

// Oldest returns the lowest seq still buffered, or 0 when empty.
func (rb *ReplayBuffer) Oldest() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.last == 0 {
		return 0
	}
	return rb.oldest()
}

// Len returns the number of frames currently buffered.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.last == 0 {
		return 0
	}
	return int(rb.last - rb.oldest() + 1)
}

func (rb *ReplayBuffer) oldest() int64 {
	if n := int64(len(rb.frames)); rb.last > n {
		return rb.last - n + 1
	}
	return 1
}

func (rb *ReplayBuffer) slot(seq int64) int {
	return int(seq % int64(len(rb.frames)))
}
