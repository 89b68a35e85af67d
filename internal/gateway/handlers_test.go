package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/marketdata"
	"github.com/studio2230704/technical-analysis-dashboard/internal/metrics"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
	"github.com/studio2230704/technical-analysis-dashboard/internal/watchlist"
)

type fakeBackend struct {
	series map[string]model.PriceSeries
	alerts []model.Alert
	ranges []marketdata.Range
	limit  int
	err    error
}

func (f *fakeBackend) Analyze(_ context.Context, ticker string, r marketdata.Range) (*model.IndicatorBundle, model.PriceSeries, error) {
	f.ranges = append(f.ranges, r)
	if f.err != nil {
		return nil, model.PriceSeries{}, f.err
	}
	s, ok := f.series[ticker]
	if !ok {
		return nil, model.PriceSeries{}, fmt.Errorf("fetch %s: %w", ticker, marketdata.ErrNoData)
	}
	b, err := indicator.Compute(s, indicator.DefaultConfig())
	return b, s, err
}

func (f *fakeBackend) Bundle(ctx context.Context, ticker string, r marketdata.Range) (*model.IndicatorBundle, error) {
	b, _, err := f.Analyze(ctx, ticker, r)
	return b, err
}

func (f *fakeBackend) RecentAlerts(_ context.Context, limit int) ([]model.Alert, error) {
	f.limit = limit
	if len(f.alerts) > limit {
		return f.alerts[:limit], nil
	}
	return f.alerts, nil
}

// zigzag oscillates hard enough to produce RSI and Bollinger events.
func zigzag(ticker string, n int) model.PriceSeries {
	s := model.PriceSeries{Ticker: ticker}
	d := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100.0 + float64(i%10)*3
		if (i/10)%2 == 1 {
			c = 130.0 - float64(i%10)*3
		}
		s.Bars = append(s.Bars, model.PriceBar{Date: d.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c})
	}
	return s
}

type apiFixture struct {
	backend *fakeBackend
	wl      *watchlist.Manager
	hub     *Hub
	metrics *metrics.Metrics
	srv     *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	wl, err := watchlist.Open(filepath.Join(t.TempDir(), "watchlist.yaml"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	f := &apiFixture{
		backend: &fakeBackend{series: map[string]model.PriceSeries{"7203.T": zigzag("7203.T", 120)}},
		wl:      wl,
		hub:     NewHub(nil),
		metrics: metrics.NewMetrics(reg),
	}
	mux := http.NewServeMux()
	api := &API{
		Backend:   f.backend,
		Watchlist: wl,
		Hub:       f.hub,
		Metrics:   f.metrics,
		Health:    http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		Gatherer:  reg,
	}
	api.RegisterRoutes(mux)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestIndicators(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/indicators?ticker=7203.t&period=6mo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var got struct {
		Ticker     string `json:"ticker"`
		Period     string `json:"period"`
		Indicators struct {
			Dates []time.Time              `json:"dates"`
			MA    map[string][]model.Value `json:"ma"`
			RSI   []model.Value            `json:"rsi"`
		} `json:"indicators"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "7203.T", got.Ticker)
	assert.Equal(t, "6mo", got.Period)
	assert.Len(t, got.Indicators.Dates, 120)
	assert.Len(t, got.Indicators.MA["25"], 120)
	assert.False(t, got.Indicators.MA["25"][23].Valid)
	assert.True(t, got.Indicators.MA["25"][24].Valid)
	assert.True(t, got.Indicators.RSI[119].Valid)
	assert.Equal(t, []marketdata.Range{{Period: "6mo", Interval: "1d"}}, f.backend.ranges)
}

func TestIndicators_Errors(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/indicators", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/indicators?ticker=AAPL&period=7d", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/indicators?ticker=NOPE", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "no data")

	f.backend.err = fmt.Errorf("compute: %w", model.ErrMalformedInput)
	resp, _ = f.do(t, http.MethodGet, "/api/indicators?ticker=7203.T", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.backend.err = fmt.Errorf("engine: %w", indicator.ErrInvalidConfiguration)
	resp, _ = f.do(t, http.MethodGet, "/api/indicators?ticker=7203.T", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/indicators?ticker=7203.T", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSignals(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/signals?ticker=7203.T&lookback=60", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got SignalsResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 60, got.Lookback)
	assert.Equal(t, "1y", got.Period)
	assert.True(t, got.RSI.Valid)
	assert.NotZero(t, got.Close)
	require.NotEmpty(t, got.Signals)
	for i := 1; i < len(got.Signals); i++ {
		assert.False(t, got.Signals[i].Date.After(got.Signals[i-1].Date), "signals must be newest first")
	}
	for _, s := range got.Signals {
		assert.GreaterOrEqual(t, s.Index, 60)
	}

	resp, _ = f.do(t, http.MethodGet, "/api/signals?ticker=7203.T&lookback=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignals_EmptyListIsArray(t *testing.T) {
	f := newAPIFixture(t)
	flat := model.PriceSeries{Ticker: "FLAT"}
	for i := 0; i < 5; i++ {
		flat.Bars = append(flat.Bars, model.PriceBar{Date: time.Date(2026, 1, 5+i, 0, 0, 0, 0, time.UTC), Close: 10})
	}
	f.backend.series["FLAT"] = flat

	resp, body := f.do(t, http.MethodGet, "/api/signals?ticker=FLAT", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"signals":[]`)
}

func TestWatchlistCRUD(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/watchlist", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = f.do(t, http.MethodPost, "/api/watchlist", `{"ticker":"7203.t","name":"Toyota","rsi_oversold":25}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var e watchlist.Entry
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "7203.T", e.Ticker)
	assert.Equal(t, 25.0, e.RSIOversold)
	assert.Equal(t, 70.0, e.RSIOverbought)
	assert.True(t, e.CrossEnabled)
	assert.Equal(t, int64(1), f.hub.ChannelSeq(ChannelWatchlist))

	resp, _ = f.do(t, http.MethodGet, "/api/watchlist/7203.T", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/watchlist", `{"ticker":"AAPL","rsi_oversold":80,"rsi_overbought":70}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/watchlist", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/watchlist/7203.t", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, f.wl.Len())
	assert.Equal(t, int64(2), f.hub.ChannelSeq(ChannelWatchlist))

	resp, _ = f.do(t, http.MethodDelete, "/api/watchlist/7203.T", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWatchlist_SignalsUseEntryThresholds(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.wl.Add(watchlist.Entry{Ticker: "7203.T", RSIOversold: 0, RSIOverbought: 100, CrossEnabled: true}))

	_, body := f.do(t, http.MethodGet, "/api/signals?ticker=7203.T&lookback=120", "")
	var got SignalsResponse
	require.NoError(t, json.Unmarshal(body, &got))
	for _, s := range got.Signals {
		assert.NotEqual(t, "rsi_overbought", string(s.Type))
	}
}

func TestAlerts(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 3; i++ {
		f.backend.alerts = append(f.backend.alerts, testAlert(fmt.Sprintf("T%d", i), model.AlertGoldenCross))
	}
	f.hub.BroadcastAlert(f.backend.alerts[0])

	resp, body := f.do(t, http.MethodGet, "/api/alerts?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got AlertsResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got.Alerts, 2)
	assert.Equal(t, int64(1), got.Seq)

	f.do(t, http.MethodGet, "/api/alerts?limit=100000", "")
	assert.Equal(t, maxAlertLimit, f.backend.limit)

	f.do(t, http.MethodGet, "/api/alerts", "")
	assert.Equal(t, defaultAlertLimit, f.backend.limit)

	resp, _ = f.do(t, http.MethodGet, "/api/alerts?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreflightAndRequestMetrics(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodOptions, "/api/watchlist", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "DELETE")

	f.do(t, http.MethodGet, "/api/indicators?ticker=7203.T", "")
	f.do(t, http.MethodGet, "/api/indicators", "")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("indicators", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("indicators", "400")))

	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tad_http_requests_total")

	resp, _ = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
