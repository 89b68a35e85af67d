package model

import (
	"context"
	"errors"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the services from concrete storage implementations
// (Redis, SQLite). Each implementation satisfies one or more of these interfaces.

// BarStore caches daily bars per ticker.
type BarStore interface {
	// WriteBars upserts bars for ticker and records the fetch time.
	WriteBars(ctx context.Context, ticker string, bars []PriceBar) error

	// ReadBars returns bars dated on or after from, oldest first.
	ReadBars(ctx context.Context, ticker string, from time.Time) ([]PriceBar, error)

	// LastFetched returns when ticker was last written. Zero if never.
	LastFetched(ctx context.Context, ticker string) (time.Time, error)
}

// AlertJournal persists raised alerts.
type AlertJournal interface {
	RecordAlert(ctx context.Context, a Alert) error
	RecentAlerts(ctx context.Context, limit int) ([]Alert, error)
}

// BundleCache holds recently computed indicator bundles.
type BundleCache interface {
	// GetBundle returns nil, nil on a cache miss.
	GetBundle(ctx context.Context, key string) (*IndicatorBundle, error)
	SetBundle(ctx context.Context, key string, b *IndicatorBundle) error
}

// AlertPublisher fans alerts out to other processes.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, a Alert) error
}

// ErrDuplicateAlert is returned by AlertJournal.RecordAlert when the same
// ticker, type and bar date has already been recorded.
var ErrDuplicateAlert = errors.New("duplicate alert")
