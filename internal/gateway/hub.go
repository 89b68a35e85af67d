package gateway

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/studio2230704/technical-analysis-dashboard/internal/metrics"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// Channel names carried in the envelope "channel" field.
const (
	ChannelAlerts    = "alerts"
	ChannelWatchlist = "watchlist"
)

const replayCapacity = 500

// Hub manages WebSocket clients and fans out alert and watchlist events.
// It satisfies alertsvc.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for reconnect backfill
	replayBufs map[string]*ReplayBuffer

	metrics *metrics.Metrics

	Broadcaster *Broadcaster
}

// NewHub creates a Hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		metrics:     m,
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// BroadcastAlert pushes an alert to every client whose ticker filter matches.
func (h *Hub) BroadcastAlert(a model.Alert) {
	h.Broadcaster.Broadcast(ChannelAlerts, a.Ticker, a.JSON())
}

// BroadcastWatchlist pushes a watchlist change event to all clients.
func (h *Hub) BroadcastWatchlist(data []byte) {
	h.Broadcaster.Broadcast(ChannelWatchlist, "", data)
}

// HandleWSRequest registers an upgraded connection. Alert envelopes with
// channel_seq greater than since are replayed before live traffic.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, since int64) {
	client := newClient(h, conn)

	conn.EnableWriteCompression(true)

	// Snapshot and registration share the lock so every alert lands either
	// in the backlog or on the live channel, never both.
	h.mu.Lock()
	if since >= 0 {
		client.backlog = h.replay(ChannelAlerts, since)
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.reportClients(count)

	log.Printf("[gateway] ws client connected (%d total, %d replayed)", count, len(client.backlog))

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	h.reportClients(count)
}

// Replay returns buffered envelopes for a channel with channel_seq > since.
// Frames already evicted from the buffer are logged and skipped.
func (h *Hub) Replay(channel string, since int64) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.replay(channel, since)
}

// replay requires h.mu.
func (h *Hub) replay(channel string, since int64) [][]byte {
	rb, ok := h.replayBufs[channel]
	if !ok {
		return nil
	}
	frames, missed := rb.Since(since)
	if missed > 0 {
		log.Printf("[gateway] replay %s since=%d: %d frames no longer buffered (oldest=%d)",
			channel, since, missed, rb.Oldest())
	}
	return frames
}

// ChannelSeq returns the current sequence number for a channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.conn.Close()
	}
}

// Run blocks until ctx is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Close()
}

func (h *Hub) reportClients(n int) {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}
