package gateway

import (
	"log"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Replayed envelopes written before anything from send.
	backlog [][]byte

	// Ticker filter; empty means every ticker.
	filterMu sync.RWMutex
	tickers  map[string]bool
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
}

// SubscribeMsg narrows the alert stream to the given tickers.
//
//	{"type":"SUBSCRIBE","tickers":["7203.T","AAPL"]}
type SubscribeMsg struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers"`
}

func (c *Client) accepts(ticker string) bool {
	if ticker == "" {
		return true
	}
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	if len(c.tickers) == 0 {
		return true
	}
	return c.tickers[strings.ToUpper(ticker)]
}

func (c *Client) setFilter(tickers []string) {
	m := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			m[t] = true
		}
	}
	c.filterMu.Lock()
	c.tickers = m
	c.filterMu.Unlock()
}

// maxCoalesce bounds how many envelopes share one frame.
const maxCoalesce = 64

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for len(c.backlog) > 0 {
		n := len(c.backlog)
		if n > maxCoalesce {
			n = maxCoalesce
		}
		if err := c.writeFrame(c.backlog[:n]); err != nil {
			return
		}
		c.backlog = c.backlog[n:]
	}
	c.backlog = nil

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Coalesce queued envelopes into one frame, newline separated
			batch := [][]byte{msg}
			n := len(c.send)
			for i := 0; i < n && len(batch) < maxCoalesce; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				batch = append(batch, next)
			}
			if err := c.writeFrame(batch); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeFrame(msgs [][]byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	for i, m := range msgs {
		if i > 0 {
			w.Write([]byte{'\n'})
		}
		w.Write(m)
	}
	return w.Close()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch base.Type {
		case "SUBSCRIBE":
			var sub SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				c.sendJSON(ErrorMsg{Type: "error", Error: "invalid SUBSCRIBE: " + err.Error()})
				continue
			}
			c.setFilter(sub.Tickers)
			c.sendJSON(map[string]interface{}{"type": "subscribed", "tickers": sub.Tickers})
		case "UNSUBSCRIBE":
			c.setFilter(nil)
			c.sendJSON(map[string]interface{}{"type": "unsubscribed"})
		default:
			if base.Ping > 0 {
				c.sendJSON(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
			}
		}
	}
}

// sendJSON queues a control message. Dropped when the send buffer is full.
func (c *Client) sendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}
