package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// wireEnvelope is the parsed WS message structure.
type wireEnvelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
}

func testAlert(ticker string, typ model.AlertType) model.Alert {
	return model.Alert{
		ID:     "01J" + ticker,
		Ticker: ticker,
		Type:   typ,
		Price:  2512.5,
		RSI:    model.Some(28.4),
		Date:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestEnvelopeFormat(t *testing.T) {
	a := testAlert("7203.T", model.AlertGoldenCross)
	now := time.Date(2026, 3, 2, 6, 0, 1, 0, time.UTC)

	buf := envelope(ChannelAlerts, a.JSON(), now, 42, 7)

	var env wireEnvelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != ChannelAlerts {
		t.Errorf("channel: got %q, want %q", env.Channel, ChannelAlerts)
	}
	if env.Seq != 42 || env.ChannelSeq != 7 {
		t.Errorf("seq/channel_seq: got %d/%d, want 42/7", env.Seq, env.ChannelSeq)
	}
	var got model.Alert
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("data is not an alert: %v", err)
	}
	if got.Ticker != "7203.T" || got.Type != model.AlertGoldenCross {
		t.Errorf("data: got %+v", got)
	}
	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil || !parsed.Equal(now) {
		t.Errorf("ts: got %q (%v), want %v", env.TS, err, now)
	}
}

func TestHub_SequencesPerChannel(t *testing.T) {
	h := NewHub(nil)

	h.BroadcastAlert(testAlert("AAPL", model.AlertRSIOversold))
	h.BroadcastWatchlist([]byte(`{"action":"added"}`))
	h.BroadcastAlert(testAlert("MSFT", model.AlertDeadCross))

	if got := h.ChannelSeq(ChannelAlerts); got != 2 {
		t.Fatalf("alerts seq = %d, want 2", got)
	}
	if got := h.ChannelSeq(ChannelWatchlist); got != 1 {
		t.Fatalf("watchlist seq = %d, want 1", got)
	}

	replay := h.Replay(ChannelAlerts, 1)
	if len(replay) != 1 {
		t.Fatalf("Replay(alerts, 1): expected 1, got %d", len(replay))
	}
	var env wireEnvelope
	if err := json.Unmarshal(replay[0], &env); err != nil {
		t.Fatal(err)
	}
	// global seq counts the watchlist event too
	if env.Seq != 3 || env.ChannelSeq != 2 {
		t.Errorf("seq/channel_seq = %d/%d, want 3/2", env.Seq, env.ChannelSeq)
	}
	if h.Replay("unknown", 0) != nil {
		t.Error("unknown channel should have no replay")
	}
}

func TestClientAccepts(t *testing.T) {
	c := &Client{}
	if !c.accepts("AAPL") {
		t.Error("client without filter should accept everything")
	}
	c.setFilter([]string{" aapl ", "7203.t"})
	if !c.accepts("AAPL") || !c.accepts("7203.T") {
		t.Error("filtered tickers should be accepted case-insensitively")
	}
	if c.accepts("MSFT") {
		t.Error("MSFT should be filtered out")
	}
	if !c.accepts("") {
		t.Error("untargeted events reach every client")
	}
}

// wsFixture starts a server exposing only /ws.
func wsFixture(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil)
	mux := http.NewServeMux()
	(&API{Hub: hub}).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelopes reads frames until n newline-separated messages arrive.
func readEnvelopes(t *testing.T, conn *websocket.Conn, n int) [][]byte {
	t.Helper()
	var out [][]byte
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for len(out) < n {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %d messages: %v", len(out), err)
		}
		out = append(out, bytes.Split(msg, []byte{'\n'})...)
	}
	return out
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWS_ReplaysSinceThenStreamsLive(t *testing.T) {
	hub, url := wsFixture(t)
	hub.BroadcastAlert(testAlert("AAPL", model.AlertGoldenCross))
	hub.BroadcastAlert(testAlert("MSFT", model.AlertDeadCross))
	hub.BroadcastAlert(testAlert("7203.T", model.AlertRSIOverbought))

	conn := dial(t, url+"?since=1")
	msgs := readEnvelopes(t, conn, 2)
	var first, second wireEnvelope
	if err := json.Unmarshal(msgs[0], &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(msgs[1], &second); err != nil {
		t.Fatal(err)
	}
	if first.ChannelSeq != 2 || second.ChannelSeq != 3 {
		t.Fatalf("replayed channel_seq %d,%d, want 2,3", first.ChannelSeq, second.ChannelSeq)
	}

	waitClients(t, hub, 1)
	hub.BroadcastAlert(testAlert("SONY", model.AlertRSIOversold))
	live := readEnvelopes(t, conn, 1)
	var env wireEnvelope
	if err := json.Unmarshal(live[0], &env); err != nil {
		t.Fatal(err)
	}
	if env.ChannelSeq != 4 || !strings.Contains(string(env.Data), "SONY") {
		t.Fatalf("live envelope = %s", live[0])
	}
}

func TestWS_ReplayLargerThanSendBuffer(t *testing.T) {
	hub, url := wsFixture(t)
	const n = 300
	for i := 0; i < n; i++ {
		hub.BroadcastAlert(testAlert("AAPL", model.AlertGoldenCross))
	}

	conn := dial(t, url+"?since=0")
	msgs := readEnvelopes(t, conn, n)
	if len(msgs) != n {
		t.Fatalf("replayed %d envelopes, want %d", len(msgs), n)
	}
	for i, m := range msgs {
		var env wireEnvelope
		if err := json.Unmarshal(m, &env); err != nil {
			t.Fatal(err)
		}
		if env.ChannelSeq != int64(i+1) {
			t.Fatalf("envelope %d has channel_seq %d", i, env.ChannelSeq)
		}
	}

	waitClients(t, hub, 1)
	hub.BroadcastAlert(testAlert("SONY", model.AlertRSIOversold))
	live := readEnvelopes(t, conn, 1)
	var env wireEnvelope
	if err := json.Unmarshal(live[0], &env); err != nil {
		t.Fatal(err)
	}
	if env.ChannelSeq != n+1 {
		t.Fatalf("live channel_seq = %d, want %d", env.ChannelSeq, n+1)
	}
}

func TestHub_ConcurrentBroadcastKeepsReplayOrdered(t *testing.T) {
	h := NewHub(nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.BroadcastAlert(testAlert("AAPL", model.AlertGoldenCross))
			}
		}()
	}
	wg.Wait()

	frames := h.Replay(ChannelAlerts, 0)
	if len(frames) != 400 {
		t.Fatalf("replay returned %d frames, want 400", len(frames))
	}
	for i, f := range frames {
		var env wireEnvelope
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatal(err)
		}
		if env.ChannelSeq != int64(i+1) {
			t.Fatalf("frame %d has channel_seq %d", i, env.ChannelSeq)
		}
	}
}

func TestWS_NoReplayWithoutSince(t *testing.T) {
	hub, url := wsFixture(t)
	hub.BroadcastAlert(testAlert("AAPL", model.AlertGoldenCross))

	conn := dial(t, url)
	waitClients(t, hub, 1)
	hub.BroadcastAlert(testAlert("MSFT", model.AlertDeadCross))

	msgs := readEnvelopes(t, conn, 1)
	if !strings.Contains(string(msgs[0]), "MSFT") {
		t.Fatalf("first message should be the live MSFT alert, got %s", msgs[0])
	}
}

func TestWS_SubscribeFiltersTickers(t *testing.T) {
	hub, url := wsFixture(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)

	if err := conn.WriteJSON(SubscribeMsg{Type: "SUBSCRIBE", Tickers: []string{"aapl"}}); err != nil {
		t.Fatal(err)
	}
	ack := readEnvelopes(t, conn, 1)
	if !strings.Contains(string(ack[0]), `"subscribed"`) {
		t.Fatalf("expected subscribe ack, got %s", ack[0])
	}

	hub.BroadcastAlert(testAlert("MSFT", model.AlertDeadCross))
	hub.BroadcastAlert(testAlert("AAPL", model.AlertGoldenCross))

	msgs := readEnvelopes(t, conn, 1)
	if len(msgs) != 1 || !strings.Contains(string(msgs[0]), `"AAPL"`) {
		t.Fatalf("expected only the AAPL alert, got %q", msgs)
	}
}

func TestWS_DisconnectRemovesClient(t *testing.T) {
	hub, url := wsFixture(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
	// broadcasting after removal must not panic on the closed send channel
	hub.BroadcastAlert(testAlert("AAPL", model.AlertGoldenCross))
}

func TestWS_RejectsBadSince(t *testing.T) {
	_, url := wsFixture(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?since=abc", nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", resp)
	}
}

type chanSource struct {
	alerts []model.Alert
	calls  chan struct{}
}

func (s *chanSource) SubscribeAlerts(ctx context.Context, out chan<- model.Alert) error {
	s.calls <- struct{}{}
	for _, a := range s.alerts {
		out <- a
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestPubSubRouter_RelaysIntoHub(t *testing.T) {
	hub := NewHub(nil)
	src := &chanSource{
		alerts: []model.Alert{testAlert("AAPL", model.AlertGoldenCross), testAlert("MSFT", model.AlertDeadCross)},
		calls:  make(chan struct{}, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewPubSubRouter(hub, src).Run(ctx)
		close(done)
	}()

	<-src.calls
	deadline := time.Now().Add(3 * time.Second)
	for hub.ChannelSeq(ChannelAlerts) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("relayed %d alerts, want 2", hub.ChannelSeq(ChannelAlerts))
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("router did not stop after cancel")
	}
}
