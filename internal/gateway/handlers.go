package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/marketdata"
	"github.com/studio2230704/technical-analysis-dashboard/internal/metrics"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
	"github.com/studio2230704/technical-analysis-dashboard/internal/signal"
	"github.com/studio2230704/technical-analysis-dashboard/internal/watchlist"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Backend is the analysis surface the REST handlers need.
// *alertsvc.Service implements it.
type Backend interface {
	Bundle(ctx context.Context, ticker string, r marketdata.Range) (*model.IndicatorBundle, error)
	Analyze(ctx context.Context, ticker string, r marketdata.Range) (*model.IndicatorBundle, model.PriceSeries, error)
	RecentAlerts(ctx context.Context, limit int) ([]model.Alert, error)
}

// API serves the REST endpoints and the /ws alert stream.
type API struct {
	Backend   Backend
	Watchlist *watchlist.Manager
	Hub       *Hub
	Metrics   *metrics.Metrics    // optional
	Health    http.Handler        // optional, mounted at /healthz
	Gatherer  prometheus.Gatherer // optional, mounted at /metrics
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		since := int64(-1)
		if s := r.URL.Query().Get("since"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v < 0 {
				http.Error(w, "invalid since", http.StatusBadRequest)
				return
			}
			since = v
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		a.Hub.HandleWSRequest(conn, since)
	})

	mux.Handle("/api/indicators", a.instrument("indicators", a.handleIndicators))
	mux.Handle("/api/signals", a.instrument("signals", a.handleSignals))
	mux.Handle("/api/watchlist", a.instrument("watchlist", a.handleWatchlist))
	mux.Handle("/api/watchlist/", a.instrument("watchlist_item", a.handleWatchlistItem))
	mux.Handle("/api/alerts", a.instrument("alerts", a.handleAlerts))

	if a.Gatherer != nil {
		mux.Handle("/metrics", metrics.Handler(a.Gatherer))
	}
	if a.Health != nil {
		mux.Handle("/healthz", a.Health)
	}
}

// GET /api/indicators?ticker=7203.T&period=1y
func (a *API) handleIndicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ticker, rng, ok := tickerAndRange(w, r)
	if !ok {
		return
	}
	b, err := a.Backend.Bundle(r.Context(), ticker, rng)
	if err != nil {
		writeAnalysisError(w, ticker, err)
		return
	}
	writeJSON(w, http.StatusOK, IndicatorsResponse{
		Ticker:     ticker,
		Period:     rng.Period,
		Interval:   rng.Interval,
		Indicators: b,
	})
}

// GET /api/signals?ticker=7203.T&period=1y&lookback=30
func (a *API) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ticker, rng, ok := tickerAndRange(w, r)
	if !ok {
		return
	}
	opts := signal.Options{Lookback: signal.DefaultLookback}
	if s := r.URL.Query().Get("lookback"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "lookback must be a positive integer")
			return
		}
		opts.Lookback = n
	}
	if a.Watchlist != nil {
		if e, found := a.Watchlist.Get(ticker); found {
			opts.RSIOversold = e.RSIOversold
			opts.RSIOverbought = e.RSIOverbought
		}
	}

	b, series, err := a.Backend.Analyze(r.Context(), ticker, rng)
	if err != nil {
		writeAnalysisError(w, ticker, err)
		return
	}
	resp := SignalsResponse{
		Ticker:   ticker,
		Period:   rng.Period,
		Lookback: opts.Lookback,
		Signals:  signal.Detect(b, series, opts),
	}
	if last, ok := series.Last(); ok {
		resp.Close = last.Close
	}
	if n := b.Len(); n > 0 {
		resp.RSI = b.RSI[n-1]
	}
	if resp.Signals == nil {
		resp.Signals = []signal.Signal{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/watchlist, POST /api/watchlist
func (a *API) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.Watchlist.List())
	case http.MethodPost:
		var req WatchlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		e := req.Entry()
		if err := a.Watchlist.Add(e); err != nil {
			if errors.Is(err, watchlist.ErrInvalidEntry) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		stored, _ := a.Watchlist.Get(e.Ticker)
		log.Printf("[gateway] watchlist add %s", stored.Ticker)
		a.announce("added", stored.Ticker)
		writeJSON(w, http.StatusCreated, stored)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// GET|DELETE /api/watchlist/{ticker}
func (a *API) handleWatchlistItem(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimPrefix(r.URL.Path, "/api/watchlist/")
	if ticker == "" || strings.Contains(ticker, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		e, ok := a.Watchlist.Get(ticker)
		if !ok {
			writeError(w, http.StatusNotFound, watchlist.ErrNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, e)
	case http.MethodDelete:
		removed, err := a.Watchlist.Remove(ticker)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, watchlist.ErrNotFound.Error())
			return
		}
		log.Printf("[gateway] watchlist remove %s", ticker)
		a.announce("removed", strings.ToUpper(ticker))
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// GET /api/alerts?limit=50
func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := defaultAlertLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxAlertLimit {
			n = maxAlertLimit
		}
		limit = n
	}
	alerts, err := a.Backend.RecentAlerts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	resp := AlertsResponse{Alerts: alerts}
	if a.Hub != nil {
		resp.Seq = a.Hub.ChannelSeq(ChannelAlerts)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) announce(action, ticker string) {
	if a.Hub == nil {
		return
	}
	data, err := json.Marshal(WatchlistEvent{Action: action, Ticker: ticker, Size: a.Watchlist.Len()})
	if err != nil {
		return
	}
	a.Hub.BroadcastWatchlist(data)
}

// instrument adds CORS, answers preflight and counts responses per route.
func (a *API) instrument(route string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		fn(rec, r)
		if a.Metrics != nil {
			a.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func tickerAndRange(w http.ResponseWriter, r *http.Request) (string, marketdata.Range, bool) {
	q := r.URL.Query()
	ticker := strings.ToUpper(strings.TrimSpace(q.Get("ticker")))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return "", marketdata.Range{}, false
	}
	rng, err := marketdata.ParseRange(q.Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", marketdata.Range{}, false
	}
	return ticker, rng, true
}

func writeAnalysisError(w http.ResponseWriter, ticker string, err error) {
	code := http.StatusBadGateway // unknown ticker or upstream failure
	switch {
	case errors.Is(err, model.ErrMalformedInput), errors.Is(err, indicator.ErrInvalidConfiguration):
		code = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	log.Printf("[gateway] analyze %s failed: %v", ticker, err)
	writeError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorMsg{Error: msg})
}
