package gateway

import (
	"strconv"
	"time"
)

// Broadcaster constructs envelope JSON and sends filtered messages to clients.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast wraps data in an envelope and sends it to every client whose
// filter accepts ticker. An empty ticker reaches all clients.
// The envelope carries a global seq and a per-channel seq for gap detection.
func (b *Broadcaster) Broadcast(channel, ticker string, data []byte) {
	now := b.now().UTC()

	b.hub.mu.Lock()
	defer b.hub.mu.Unlock()
	b.hub.channelSeqs[channel]++
	channelSeq := b.hub.channelSeqs[channel]
	b.hub.seq++
	seq := b.hub.seq
	rb, exists := b.hub.replayBufs[channel]
	if !exists {
		rb = NewReplayBuffer(replayCapacity)
		b.hub.replayBufs[channel] = rb
	}

	buf := envelope(channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, buf)

	for client := range b.hub.clients {
		if !client.accepts(ticker) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			// slow consumer; client can backfill via ?since=
		}
	}
}

// envelope hand-crafts the wire frame around an already encoded payload.
func envelope(channel string, data []byte, ts time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}
