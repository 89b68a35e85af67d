package marketdata

import (
	"context"
	"log"
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// coverageSlack tolerates weekends and holidays at the start of a range.
const coverageSlack = 7 * 24 * time.Hour

// CachedFetcher serves bars from a BarStore while they are younger than
// MaxAge and cover the requested range, and otherwise refreshes from Next.
// When Next fails, whatever the store holds is returned instead.
type CachedFetcher struct {
	Next   Fetcher
	Store  model.BarStore
	MaxAge time.Duration

	// OnResult, if set, is told whether each call was served from the store.
	OnResult func(hit bool)

	now func() time.Time
}

// NewCachedFetcher wraps next with store.
func NewCachedFetcher(next Fetcher, store model.BarStore, maxAge time.Duration) *CachedFetcher {
	return &CachedFetcher{Next: next, Store: store, MaxAge: maxAge, now: time.Now}
}

// Fetch implements Fetcher.
func (c *CachedFetcher) Fetch(ctx context.Context, ticker string, r Range) (model.PriceSeries, error) {
	now := c.clock()
	start := r.Start(now)

	cached, fresh := c.lookup(ctx, ticker, start, now)
	if fresh {
		c.report(true)
		return model.PriceSeries{Ticker: ticker, Bars: cached}, nil
	}
	c.report(false)

	s, err := c.Next.Fetch(ctx, ticker, r)
	if err != nil {
		if len(cached) > 0 {
			log.Printf("[marketdata] %s: refresh failed, serving %d cached bars: %v", ticker, len(cached), err)
			return model.PriceSeries{Ticker: ticker, Bars: cached}, nil
		}
		return model.PriceSeries{}, err
	}

	if err := c.Store.WriteBars(ctx, ticker, s.Bars); err != nil {
		log.Printf("[marketdata] %s: cache write failed: %v", ticker, err)
	}
	return s.Since(start), nil
}

// lookup returns the cached bars from start and whether they can be served as is.
func (c *CachedFetcher) lookup(ctx context.Context, ticker string, start, now time.Time) ([]model.PriceBar, bool) {
	bars, err := c.Store.ReadBars(ctx, ticker, start)
	if err != nil {
		log.Printf("[marketdata] %s: cache read failed: %v", ticker, err)
		return nil, false
	}
	if len(bars) == 0 {
		return nil, false
	}

	last, err := c.Store.LastFetched(ctx, ticker)
	if err != nil || last.IsZero() || now.Sub(last) >= c.MaxAge {
		return bars, false
	}
	if bars[0].Date.After(start.Add(coverageSlack)) {
		return bars, false
	}
	return bars, true
}

func (c *CachedFetcher) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func (c *CachedFetcher) report(hit bool) {
	if c.OnResult != nil {
		c.OnResult(hit)
	}
}
