package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultBundleTTL   = 5 * time.Minute
	defaultRecentLimit = 200
	defaultKeyPrefix   = "tad"
)

// Config configures the Redis store.
type Config struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	KeyPrefix string
	BundleTTL time.Duration

	// Breaker settings; zero values pick 5 failures / 10s.
	MaxFailures  int
	ResetTimeout time.Duration
}

// Store caches indicator bundles and fans alerts out over Pub/Sub.
// Every call goes through a circuit breaker so a dead Redis degrades
// to cache misses instead of stalling the caller.
type Store struct {
	client *goredis.Client
	cb     *CircuitBreaker
	cfg    Config
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the circuit breaker guarding Redis calls.
func (s *Store) Breaker() *CircuitBreaker { return s.cb }

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.BundleTTL <= 0 {
		cfg.BundleTTL = defaultBundleTTL
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	return &Store{
		client: client,
		cb:     NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		cfg:    cfg,
	}
}

// BundleKey builds the cache key for a ticker/range/config combination.
func (s *Store) BundleKey(ticker, rng, cfgHash string) string {
	return s.cfg.KeyPrefix + ":bundle:" + ticker + ":" + rng + ":" + cfgHash
}

// AlertChannel is the Pub/Sub channel alerts are published on.
func (s *Store) AlertChannel() string { return s.cfg.KeyPrefix + ":pub:alerts" }

func (s *Store) recentKey() string { return s.cfg.KeyPrefix + ":alerts:recent" }

// GetBundle implements model.BundleCache. Misses, including an open breaker, return nil, nil.
func (s *Store) GetBundle(ctx context.Context, key string) (*model.IndicatorBundle, error) {
	var raw []byte
	err := s.cb.Execute(func() error {
		b, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	if raw == nil {
		return nil, nil
	}

	var b model.IndicatorBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("redis decode bundle: %w", err)
	}
	return &b, nil
}

// SetBundle implements model.BundleCache.
func (s *Store) SetBundle(ctx context.Context, key string, b *model.IndicatorBundle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("redis encode bundle: %w", err)
	}
	err = s.cb.Execute(func() error {
		return s.client.Set(ctx, key, data, s.cfg.BundleTTL).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// publishAlert pushes the alert onto the recent list and publishes it in one pipeline.
func (s *Store) publishAlert(ctx context.Context, data []byte) error {
	return s.cb.Execute(func() error {
		pipe := s.client.Pipeline()
		pipe.LPush(ctx, s.recentKey(), data)
		pipe.LTrim(ctx, s.recentKey(), 0, defaultRecentLimit-1)
		pipe.Publish(ctx, s.AlertChannel(), data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// RecentAlerts returns up to limit alerts from the recent list, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	if limit <= 0 || limit > defaultRecentLimit {
		limit = defaultRecentLimit
	}
	var raws []string
	err := s.cb.Execute(func() error {
		var err error
		raws, err = s.client.LRange(ctx, s.recentKey(), 0, int64(limit-1)).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis recent alerts: %w", err)
	}

	out := make([]model.Alert, 0, len(raws))
	for _, r := range raws {
		var a model.Alert
		if err := json.Unmarshal([]byte(r), &a); err != nil {
			log.Printf("[redis] skipping bad alert payload: %v", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
