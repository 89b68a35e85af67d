package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

type memStore struct {
	mu      sync.Mutex
	bars    map[string][]model.PriceBar
	fetched map[string]time.Time
	now     func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{bars: map[string][]model.PriceBar{}, fetched: map[string]time.Time{}, now: now}
}

func (m *memStore) WriteBars(_ context.Context, ticker string, bars []model.PriceBar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[ticker] = append([]model.PriceBar(nil), bars...)
	m.fetched[ticker] = m.now()
	return nil
}

func (m *memStore) ReadBars(_ context.Context, ticker string, from time.Time) ([]model.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.PriceSeries{Bars: m.bars[ticker]}.Since(from)
	return s.Bars, nil
}

func (m *memStore) LastFetched(_ context.Context, ticker string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetched[ticker], nil
}

type stubFetcher struct {
	calls int
	bars  []model.PriceBar
	err   error
}

func (s *stubFetcher) Fetch(_ context.Context, ticker string, _ Range) (model.PriceSeries, error) {
	s.calls++
	if s.err != nil {
		return model.PriceSeries{}, s.err
	}
	return model.PriceSeries{Ticker: ticker, Bars: s.bars}, nil
}

func dailyBars(from time.Time, n int) []model.PriceBar {
	out := make([]model.PriceBar, n)
	for i := range out {
		out[i] = model.PriceBar{Date: from.AddDate(0, 0, i), Close: 100 + float64(i)}
	}
	return out
}

func TestCachedFetcher_HitWithinMaxAge(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := newMemStore(clock)
	next := &stubFetcher{bars: dailyBars(time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), 31)}

	var hits, misses int
	c := NewCachedFetcher(next, store, time.Hour)
	c.now = clock
	c.OnResult = func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}

	r := Range{Period: "1mo", Interval: "1d"}
	first, err := c.Fetch(context.Background(), "AAPL", r)
	require.NoError(t, err)
	second, err := c.Fetch(context.Background(), "AAPL", r)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCachedFetcher_RefreshesWhenStale(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := newMemStore(clock)
	next := &stubFetcher{bars: dailyBars(time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), 31)}

	c := NewCachedFetcher(next, store, time.Hour)
	c.now = clock
	r := Range{Period: "1mo", Interval: "1d"}

	_, err := c.Fetch(context.Background(), "AAPL", r)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = c.Fetch(context.Background(), "AAPL", r)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedFetcher_RefreshesWhenRangeNotCovered(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := newMemStore(clock)
	next := &stubFetcher{bars: dailyBars(time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), 31)}

	c := NewCachedFetcher(next, store, time.Hour)
	c.now = clock

	_, err := c.Fetch(context.Background(), "AAPL", Range{Period: "1mo", Interval: "1d"})
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), "AAPL", Range{Period: "1y", Interval: "1d"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedFetcher_ServesStaleOnError(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := newMemStore(clock)
	next := &stubFetcher{bars: dailyBars(time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), 31)}

	c := NewCachedFetcher(next, store, time.Hour)
	c.now = clock
	r := Range{Period: "1mo", Interval: "1d"}
	_, err := c.Fetch(context.Background(), "AAPL", r)
	require.NoError(t, err)

	now = now.Add(24 * time.Hour)
	next.err = errors.New("upstream down")
	s, err := c.Fetch(context.Background(), "AAPL", r)
	require.NoError(t, err)
	assert.NotZero(t, s.Len())

	_, err = c.Fetch(context.Background(), "MSFT", r)
	assert.Error(t, err)
}
