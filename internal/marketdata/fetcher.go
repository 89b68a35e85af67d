// Package marketdata retrieves daily price history for the indicator engine.
//
// Fetcher implementations: YahooFetcher (chart API over HTTP), CachedFetcher
// (SQLite-backed cache in front of another Fetcher) and CSV input via ReadCSV.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// ErrNoData is returned when the source has no bars for the ticker.
var ErrNoData = errors.New("no data returned")

// Fetcher loads a daily price series for a ticker.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string, r Range) (model.PriceSeries, error)
}

// Range selects how much history to load.
type Range struct {
	Period   string `json:"period" yaml:"period"`     // 1mo, 3mo, 6mo, 1y, 2y, 5y
	Interval string `json:"interval" yaml:"interval"` // 1d
}

// DefaultRange is one year of daily bars.
var DefaultRange = Range{Period: "1y", Interval: "1d"}

var periods = map[string]func(time.Time) time.Time{
	"1mo": func(t time.Time) time.Time { return t.AddDate(0, -1, 0) },
	"3mo": func(t time.Time) time.Time { return t.AddDate(0, -3, 0) },
	"6mo": func(t time.Time) time.Time { return t.AddDate(0, -6, 0) },
	"1y":  func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) },
	"2y":  func(t time.Time) time.Time { return t.AddDate(-2, 0, 0) },
	"5y":  func(t time.Time) time.Time { return t.AddDate(-5, 0, 0) },
}

// ParseRange builds a daily Range from a period string. Empty means DefaultRange.
func ParseRange(period string) (Range, error) {
	if period == "" {
		return DefaultRange, nil
	}
	if _, ok := periods[period]; !ok {
		return Range{}, fmt.Errorf("unsupported period %q (want 1mo, 3mo, 6mo, 1y, 2y or 5y)", period)
	}
	return Range{Period: period, Interval: "1d"}, nil
}

// Start returns the first date covered by r when asked at now.
func (r Range) Start(now time.Time) time.Time {
	fn, ok := periods[r.Period]
	if !ok {
		fn = periods[DefaultRange.Period]
	}
	y, m, d := fn(now).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r Range) String() string { return r.Period + "/" + r.Interval }

// dateOf truncates t to its calendar date in UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
