// Package alertsvc orchestrates the watchlist alert pipeline and serves
// indicator bundles to the dashboard.
//
// One run walks the watchlist: fetch (cached) → compute → check latest bar →
// journal → publish → broadcast → notify.
package alertsvc

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	json "github.com/goccy/go-json"

	"github.com/studio2230704/technical-analysis-dashboard/internal/alert"
	"github.com/studio2230704/technical-analysis-dashboard/internal/calendar"
	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/logger"
	"github.com/studio2230704/technical-analysis-dashboard/internal/marketdata"
	"github.com/studio2230704/technical-analysis-dashboard/internal/metrics"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
	"github.com/studio2230704/technical-analysis-dashboard/internal/notification"
	"github.com/studio2230704/technical-analysis-dashboard/internal/watchlist"
)

// Watchlist is the read side of the watchlist manager.
type Watchlist interface {
	List() []watchlist.Entry
}

// Broadcaster pushes alerts to connected dashboard clients.
type Broadcaster interface {
	BroadcastAlert(a model.Alert)
}

// Config holds scheduler and data settings.
type Config struct {
	Schedule       string           // cron expression, default "@every 1h"
	RunOnStart     bool             // run once before the first tick
	SkipNonTrading bool             // skip ticks on weekends and holidays
	Range          marketdata.Range // history fetched per ticker
	TickerTimeout  time.Duration    // per-ticker fetch+compute budget
}

// DefaultConfig mirrors the hourly check of the dashboard.
func DefaultConfig() Config {
	return Config{
		Schedule:       "@every 1h",
		RunOnStart:     true,
		SkipNonTrading: true,
		Range:          marketdata.Range{Period: "1y", Interval: "1d"},
		TickerTimeout:  30 * time.Second,
	}
}

// Deps are the collaborators of a Service. Engine, Fetcher, Watchlist and
// Checker are required; the rest are optional.
type Deps struct {
	Engine    *indicator.Engine
	Fetcher   marketdata.Fetcher
	Watchlist Watchlist
	Checker   *alert.Checker

	Journal     model.AlertJournal
	Publisher   model.AlertPublisher
	Cache       model.BundleCache
	BundleKey   func(ticker, rng, cfgHash string) string
	Broadcaster Broadcaster
	Notifier    notification.Notifier
	Calendar    *calendar.Calendar
	Metrics     *metrics.Metrics
	Health      *metrics.HealthStatus
}

// Service is the top-level orchestrator for alert checks.
type Service struct {
	cfg     Config
	deps    Deps
	cfgHash string
	now     func() time.Time
}

// New validates deps and returns a Service.
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Engine == nil || deps.Fetcher == nil || deps.Watchlist == nil || deps.Checker == nil {
		return nil, errors.New("alertsvc: engine, fetcher, watchlist and checker are required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultConfig().Schedule
	}
	if cfg.Range.Period == "" {
		cfg.Range = marketdata.DefaultRange
	}
	if cfg.TickerTimeout <= 0 {
		cfg.TickerTimeout = DefaultConfig().TickerTimeout
	}

	pair := deps.Checker.Pair()
	if !hasWindow(deps.Engine.Config().Windows(), pair.Fast) || !hasWindow(deps.Engine.Config().Windows(), pair.Slow) {
		return nil, fmt.Errorf("alertsvc: engine does not compute the alert pair %s", pair)
	}
	if deps.BundleKey == nil {
		deps.BundleKey = func(ticker, rng, cfgHash string) string {
			return "bundle:" + ticker + ":" + rng + ":" + cfgHash
		}
	}

	return &Service{
		cfg:     cfg,
		deps:    deps,
		cfgHash: configHash(deps.Engine.Config()),
		now:     time.Now,
	}, nil
}

// Config returns the service configuration after defaults.
func (s *Service) Config() Config { return s.cfg }

// RunOnce checks every watchlist entry and delivers new alerts. Per-ticker
// failures are logged and counted; they never abort the run. Alerts already
// journaled for the same ticker, type and bar are not delivered again.
func (s *Service) RunOnce(ctx context.Context) ([]model.Alert, error) {
	ctx = logger.WithRunID(ctx, logger.NewRunID())
	entries := s.deps.Watchlist.List()
	log.Printf("[alertsvc] run %s: checking %d tickers", logger.RunID(ctx), len(entries))

	var (
		raised   []model.Alert
		failures int
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return raised, err
		}
		alerts, err := s.checkTicker(ctx, e)
		if err != nil {
			failures++
			if m := s.deps.Metrics; m != nil {
				m.TickerFailures.Inc()
			}
			log.Printf("[alertsvc] %s: %v", e.Ticker, err)
			continue
		}
		for _, a := range alerts {
			if s.deliver(ctx, a) {
				raised = append(raised, a)
			}
		}
	}

	finished := s.now()
	if m := s.deps.Metrics; m != nil {
		m.AlertRuns.Inc()
		m.LastRunTime.Set(float64(finished.Unix()))
	}
	if h := s.deps.Health; h != nil {
		h.RecordRun(finished, len(raised), failures)
		h.SetWatchlistSize(len(entries))
	}
	log.Printf("[alertsvc] run %s: %d alerts, %d failures", logger.RunID(ctx), len(raised), failures)
	return raised, nil
}

func (s *Service) checkTicker(ctx context.Context, e watchlist.Entry) ([]model.Alert, error) {
	tctx, cancel := context.WithTimeout(ctx, s.cfg.TickerTimeout)
	defer cancel()

	b, series, err := s.Analyze(tctx, e.Ticker, s.cfg.Range)
	if err != nil {
		return nil, err
	}
	return s.deps.Checker.Check(e, b, series), nil
}

// deliver journals a and fans it out. It returns false when the journal
// already holds this alert.
func (s *Service) deliver(ctx context.Context, a model.Alert) bool {
	if j := s.deps.Journal; j != nil {
		err := j.RecordAlert(ctx, a)
		if errors.Is(err, model.ErrDuplicateAlert) {
			return false
		}
		if err != nil {
			log.Printf("[alertsvc] journal %s %s: %v", a.Ticker, a.Type, err)
		}
	}
	if m := s.deps.Metrics; m != nil {
		m.AlertsTotal.WithLabelValues(string(a.Type)).Inc()
	}
	if p := s.deps.Publisher; p != nil {
		if err := p.PublishAlert(ctx, a); err != nil {
			log.Printf("[alertsvc] publish %s %s: %v", a.Ticker, a.Type, err)
		}
	}
	if b := s.deps.Broadcaster; b != nil {
		b.BroadcastAlert(a)
	}
	if n := s.deps.Notifier; n != nil {
		if err := n.Send(ctx, a); err != nil {
			log.Printf("[alertsvc] notify %s %s: %v", a.Ticker, a.Type, err)
		}
	}
	return true
}

// Analyze fetches history for ticker and computes its bundle, bypassing the
// bundle cache.
func (s *Service) Analyze(ctx context.Context, ticker string, r marketdata.Range) (*model.IndicatorBundle, model.PriceSeries, error) {
	start := time.Now()
	series, err := s.deps.Fetcher.Fetch(ctx, ticker, r)
	if m := s.deps.Metrics; m != nil {
		m.FetchDur.Observe(time.Since(start).Seconds())
		if err != nil {
			m.FetchErrors.WithLabelValues(ticker).Inc()
		}
	}
	if err != nil {
		return nil, model.PriceSeries{}, fmt.Errorf("fetch: %w", err)
	}

	start = time.Now()
	b, err := s.deps.Engine.Compute(series)
	if m := s.deps.Metrics; m != nil {
		m.ComputeDur.Observe(time.Since(start).Seconds())
		m.ComputeTotal.WithLabelValues(computeResult(err)).Inc()
	}
	if err != nil {
		return nil, series, fmt.Errorf("compute: %w", err)
	}
	return b, series, nil
}

// Bundle serves the dashboard: bundle cache, then fetch and compute, then
// cache the result. Cache failures only cost a recompute.
func (s *Service) Bundle(ctx context.Context, ticker string, r marketdata.Range) (*model.IndicatorBundle, error) {
	key := s.deps.BundleKey(ticker, r.String(), s.cfgHash)
	if c := s.deps.Cache; c != nil {
		b, err := c.GetBundle(ctx, key)
		if err != nil {
			log.Printf("[alertsvc] bundle cache get %s: %v", key, err)
		}
		s.cacheResult(b != nil)
		if b != nil {
			return b, nil
		}
	}

	b, _, err := s.Analyze(ctx, ticker, r)
	if err != nil {
		return nil, err
	}
	if c := s.deps.Cache; c != nil {
		if err := c.SetBundle(ctx, key, b); err != nil {
			log.Printf("[alertsvc] bundle cache set %s: %v", key, err)
		}
	}
	return b, nil
}

// RecentAlerts returns journaled alerts, newest first.
func (s *Service) RecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	if s.deps.Journal == nil {
		return nil, nil
	}
	return s.deps.Journal.RecentAlerts(ctx, limit)
}

func (s *Service) cacheResult(hit bool) {
	if m := s.deps.Metrics; m != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		m.CacheResult.WithLabelValues("bundle", result).Inc()
	}
}

func computeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, indicator.ErrInvalidConfiguration):
		return "invalid_config"
	case errors.Is(err, indicator.ErrMalformedInput):
		return "malformed_input"
	}
	return "error"
}

// configHash fingerprints the engine config so cached bundles from another
// configuration are never served.
func configHash(cfg indicator.Config) string {
	data, _ := json.Marshal(cfg)
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

func hasWindow(ws []int, w int) bool {
	for _, x := range ws {
		if x == w {
			return true
		}
	}
	return false
}
