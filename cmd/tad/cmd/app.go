package cmd

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/studio2230704/technical-analysis-dashboard/config"
	"github.com/studio2230704/technical-analysis-dashboard/internal/alert"
	"github.com/studio2230704/technical-analysis-dashboard/internal/alertsvc"
	"github.com/studio2230704/technical-analysis-dashboard/internal/calendar"
	"github.com/studio2230704/technical-analysis-dashboard/internal/gateway"
	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/marketdata"
	"github.com/studio2230704/technical-analysis-dashboard/internal/metrics"
	"github.com/studio2230704/technical-analysis-dashboard/internal/notification"
	"github.com/studio2230704/technical-analysis-dashboard/internal/store/redis"
	"github.com/studio2230704/technical-analysis-dashboard/internal/store/sqlite"
	"github.com/studio2230704/technical-analysis-dashboard/internal/watchlist"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	health    *metrics.HealthStatus
	sqlite    *sqlite.Store
	redis     *redis.Store // nil when disabled or unreachable
	publisher *redis.BufferedPublisher
	fetcher   marketdata.Fetcher
	engine    *indicator.Engine
	watchlist *watchlist.Manager
	calendar  *calendar.Calendar
	notifier  notification.Notifier
	svc       *alertsvc.Service
	hub       *gateway.Hub
}

// appOptions selects optional wiring.
type appOptions struct {
	// hub creates a websocket hub. Without Redis the service broadcasts to
	// it directly; with Redis the hub is fed from Pub/Sub instead.
	hub bool
}

// newApp opens stores and builds the alert service. ctx bounds background
// work such as publisher flushes.
func newApp(ctx context.Context, c *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: c, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewMetrics(a.registry)
	a.health = metrics.NewHealthStatus()

	engine, err := indicator.NewEngine(c.Engine)
	if err != nil {
		return nil, err
	}
	a.engine = engine

	wl, err := watchlist.Open(c.Data.Watchlist)
	if err != nil {
		return nil, err
	}
	a.watchlist = wl
	a.health.SetWatchlistSize(wl.Len())

	cal, err := calendar.New(c.Alerts.Timezone, c.Alerts.Holidays)
	if err != nil {
		return nil, err
	}
	a.calendar = cal

	store, err := sqlite.New(sqlite.Config{DBPath: c.Storage.SQLitePath})
	if err != nil {
		return nil, err
	}
	a.sqlite = store
	a.health.SetSQLiteOK(true)

	yahoo := marketdata.NewYahooFetcher(c.Data.RPS, c.Data.Timeout)
	cached := marketdata.NewCachedFetcher(yahoo, store, c.Data.CacheMaxAge)
	cached.OnResult = func(hit bool) {
		a.metrics.CacheResult.WithLabelValues("bars", hitLabel(hit)).Inc()
	}
	a.fetcher = cached

	a.health.SetRedisEnabled(c.Storage.Redis.Enabled)
	if c.Storage.Redis.Enabled {
		a.openRedis(ctx)
	}

	a.notifier, err = a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := alertsvc.Deps{
		Engine:    engine,
		Fetcher:   a.fetcher,
		Watchlist: wl,
		Checker:   alert.NewChecker(c.Alerts.CrossPair),
		Journal:   store,
		Notifier:  a.notifier,
		Calendar:  cal,
		Metrics:   a.metrics,
		Health:    a.health,
	}
	if a.redis != nil {
		deps.Cache = a.redis
		deps.BundleKey = a.redis.BundleKey
		deps.Publisher = a.publisher
	}
	if opts.hub {
		a.hub = gateway.NewHub(a.metrics)
		if a.redis == nil {
			deps.Broadcaster = a.hub
		}
	}

	rng, err := marketdata.ParseRange(c.Data.Period)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.svc, err = alertsvc.New(alertsvc.Config{
		Schedule:       c.Alerts.Schedule,
		RunOnStart:     c.Alerts.RunOnStart,
		SkipNonTrading: c.Alerts.SkipNonTrading,
		Range:          rng,
		TickerTimeout:  c.Alerts.TickerTimeout,
	}, deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openRedis connects the bundle cache and alert publisher. Failure leaves
// the app running on SQLite alone.
func (a *app) openRedis(ctx context.Context) {
	rc := a.cfg.Storage.Redis
	rs, err := redis.New(redis.Config{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		KeyPrefix: rc.KeyPrefix,
		BundleTTL: rc.BundleTTL,
	})
	if err != nil {
		log.Printf("[tad] redis unavailable, continuing without cache: %v", err)
		return
	}
	a.redis = rs
	a.health.CheckRedis(ctx, rs.Client())

	rs.Breaker().OnStateChange = func(from, to redis.State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		a.metrics.RedisCircuitBreakerState.Set(float64(to))
		if to == redis.StateOpen {
			a.metrics.RedisCircuitBreakerTrips.Inc()
		}
	}
	a.publisher = redis.NewBufferedPublisher(ctx, rs, rc.PublishBuffer)
	a.publisher.OnBuffer = func() { a.metrics.RedisBufferedAlerts.Inc() }
	a.publisher.OnFlush = func(n int) { log.Printf("[redis] flushed %d buffered alerts", n) }
}

func (a *app) buildNotifier() (notification.Notifier, error) {
	var backends []notification.Notifier
	n := a.cfg.Notify
	if n.Log {
		backends = append(backends, notification.NewLogNotifier())
	}
	if n.Telegram.Enabled {
		tg, err := notification.NewTelegramNotifier(n.Telegram.BotToken, n.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		backends = append(backends, tg)
	}
	if n.Webhook.Enabled {
		backends = append(backends, notification.NewWebhookNotifier(n.Webhook.URL))
	}
	if len(backends) == 0 {
		return nil, nil
	}
	return notification.NewMulti(func(name string, err error) {
		a.metrics.NotifyErrors.WithLabelValues(name).Inc()
	}, backends...), nil
}

// startLiveness polls Redis and SQLite for the health endpoint.
func (a *app) startLiveness(ctx context.Context) {
	if a.redis != nil {
		a.health.StartLivenessChecker(ctx, a.redis.Client(), a.sqlite.DB(), 15*time.Second)
		return
	}
	a.health.StartLivenessChecker(ctx, nil, a.sqlite.DB(), 15*time.Second)
}

// Close releases stores.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("[tad] redis close: %v", err)
		}
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			log.Printf("[tad] sqlite close: %v", err)
		}
	}
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
