package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the dashboard services.
type Metrics struct {
	// Indicator engine
	ComputeDur   prometheus.Histogram
	ComputeTotal *prometheus.CounterVec // labels: result=ok|invalid_config|malformed_input

	// Market data
	FetchDur    prometheus.Histogram
	FetchErrors *prometheus.CounterVec // labels: ticker
	CacheResult *prometheus.CounterVec // labels: cache=bars|bundle, result=hit|miss

	// Alerts
	AlertRuns      prometheus.Counter
	AlertsTotal    *prometheus.CounterVec // labels: type
	NotifyErrors   *prometheus.CounterVec // labels: notifier
	TickerFailures prometheus.Counter
	LastRunTime    prometheus.Gauge

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedAlerts      prometheus.Counter

	// Gateway
	WSClients    prometheus.Gauge
	HTTPRequests *prometheus.CounterVec // labels: route, code
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tad_indicator_compute_duration_seconds",
			Help:    "Indicator bundle compute latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ComputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tad_indicator_computes_total",
			Help: "Indicator bundle computations by result",
		}, []string{"result"}),

		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tad_fetch_duration_seconds",
			Help:    "Price history fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tad_fetch_errors_total",
			Help: "Price history fetch failures",
		}, []string{"ticker"}),
		CacheResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tad_cache_requests_total",
			Help: "Cache lookups by cache and result",
		}, []string{"cache", "result"}),

		AlertRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tad_alert_runs_total",
			Help: "Completed watchlist alert checks",
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tad_alerts_total",
			Help: "Alerts raised by type",
		}, []string{"type"}),
		NotifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tad_notify_errors_total",
			Help: "Notification delivery failures",
		}, []string{"notifier"}),
		TickerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tad_alert_ticker_failures_total",
			Help: "Watchlist tickers skipped because fetch or compute failed",
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tad_alert_last_run_timestamp_seconds",
			Help: "Unix time of the last completed alert run",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tad_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tad_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tad_redis_buffered_alerts_total",
			Help: "Alerts buffered locally while the Redis circuit was open",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tad_ws_clients",
			Help: "Connected dashboard WebSocket clients",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tad_http_requests_total",
			Help: "API requests by route and status code",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		m.ComputeDur,
		m.ComputeTotal,
		m.FetchDur,
		m.FetchErrors,
		m.CacheResult,
		m.AlertRuns,
		m.AlertsTotal,
		m.NotifyErrors,
		m.TickerFailures,
		m.LastRunTime,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedAlerts,
		m.WSClients,
		m.HTTPRequests,
	)

	return m
}
