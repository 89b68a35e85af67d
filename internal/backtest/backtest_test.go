package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio2230704/technical-analysis-dashboard/internal/marketdata"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(ticker string, closes ...float64) model.PriceSeries {
	s := model.PriceSeries{Ticker: ticker}
	for i, c := range closes {
		s.Bars = append(s.Bars, model.PriceBar{Date: day0.AddDate(0, 0, i), Close: c})
	}
	return s
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Pair = model.CrossPair{Fast: 2, Slow: 4}
	cfg.MinBars = 0
	return cfg
}

// Golden cross at index 6 (close 12), dead cross at 10 (close 8).
var roundTrip = []float64{10, 10, 10, 10, 8, 8, 12, 14, 16, 12, 8, 6}

func TestRun_SingleLosingTrade(t *testing.T) {
	res, err := Run(makeSeries("LOSS", roundTrip...), smallConfig())
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, day0.AddDate(0, 0, 6), tr.EntryDate)
	assert.Equal(t, 12.0, tr.EntryPrice)
	assert.Equal(t, day0.AddDate(0, 0, 10), tr.ExitDate)
	assert.Equal(t, 8.0, tr.ExitPrice)
	assert.InDelta(t, -33.3333, tr.ReturnPct, 1e-3)
	assert.False(t, tr.ClosedAtEnd)

	assert.Equal(t, 1, res.TotalTrades)
	assert.Equal(t, 0, res.WinningTrades)
	assert.Equal(t, 1, res.LosingTrades)
	assert.Equal(t, 0.0, res.WinRate)
	assert.InDelta(t, -33.3333, res.TotalReturn, 1e-3)
	assert.InDelta(t, -33.3333, res.MaxDrawdown, 1e-3)
	assert.InDelta(t, 66.6667, res.FinalEquity, 1e-3)
	assert.Len(t, res.RunID, 26)
	assert.Equal(t, "Golden_Cross_SMA2/SMA4", res.Strategy)
}

func TestRun_OpenTradeClosedAtLastBar(t *testing.T) {
	res, err := Run(makeSeries("WIN", 10, 10, 10, 10, 8, 8, 12, 14, 16, 18), smallConfig())
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].ClosedAtEnd)
	assert.Equal(t, 18.0, res.Trades[0].ExitPrice)
	assert.InDelta(t, 50.0, res.TotalReturn, 1e-9)
	assert.Equal(t, 100.0, res.WinRate)
	assert.Equal(t, 0.0, res.MaxDrawdown)
}

func TestRun_CompoundsEquity(t *testing.T) {
	closes := append(append([]float64{}, roundTrip...), 9, 12, 15)
	res, err := Run(makeSeries("MIX", closes...), smallConfig())
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.InDelta(t, 25.0, res.Trades[1].ReturnPct, 1e-9)
	assert.Equal(t, 50.0, res.WinRate)
	assert.InDelta(t, -4.16667, res.AvgReturn, 1e-4)
	// 100 → 66.67 → 83.33
	assert.InDelta(t, -16.6667, res.TotalReturn, 1e-3)
	assert.InDelta(t, -33.3333, res.MaxDrawdown, 1e-3)
}

func TestRun_Errors(t *testing.T) {
	cfg := smallConfig()
	cfg.MinBars = 100
	_, err := Run(makeSeries("SHORT", roundTrip...), cfg)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, err = Run(makeSeries("FLAT", 5, 5, 5, 5, 5, 5, 5, 5), smallConfig())
	assert.True(t, errors.Is(err, ErrNoTrades))

	bad := makeSeries("DUP", roundTrip...)
	bad.Bars[3].Date = bad.Bars[2].Date
	_, err = Run(bad, smallConfig())
	assert.True(t, errors.Is(err, model.ErrMalformedInput))
}

func TestRun_SkipsEntryAtZeroClose(t *testing.T) {
	cfg := smallConfig()
	cfg.Pair = model.CrossPair{Fast: 1, Slow: 2}
	// golden cross at index 4, where the close is 0
	var (
		res *Result
		err error
	)
	require.NotPanics(t, func() {
		res, err = Run(makeSeries("ZERO", 3, 2, 1, -1, 0), cfg)
	})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrNoTrades))
}

func TestMaxDrawdown(t *testing.T) {
	d := func(vs ...float64) float64 {
		curve := make([]decimal.Decimal, len(vs))
		for i, v := range vs {
			curve[i] = decimal.NewFromFloat(v)
		}
		return maxDrawdown(curve)
	}
	assert.Equal(t, 0.0, d(100, 110, 120))
	assert.InDelta(t, -50.0, d(100, 200, 100, 150), 1e-9)
	assert.InDelta(t, -20.0, d(100, 80, 120, 110), 1e-9)
}

type stubFetcher map[string]model.PriceSeries

func (s stubFetcher) Fetch(_ context.Context, ticker string, _ marketdata.Range) (model.PriceSeries, error) {
	ps, ok := s[ticker]
	if !ok {
		return model.PriceSeries{}, marketdata.ErrNoData
	}
	return ps, nil
}

func TestRunPortfolio(t *testing.T) {
	cfg := smallConfig()
	cfg.MinBars = 5
	f := stubFetcher{
		"LOSS":  makeSeries("LOSS", roundTrip...),
		"WIN":   makeSeries("WIN", 10, 10, 10, 10, 8, 8, 12, 14, 16, 18),
		"FLAT":  makeSeries("FLAT", 5, 5, 5, 5, 5, 5),
		"SHORT": makeSeries("SHORT", 1, 2, 3),
	}
	tickers := []string{"LOSS", "WIN", "FLAT", "SHORT", "MISSING", "IGNORED"}

	pr, err := RunPortfolio(context.Background(), f, tickers, marketdata.DefaultRange, 5, cfg)
	require.NoError(t, err)

	s := pr.Summary
	assert.Equal(t, 2, s.StocksAnalyzed)
	assert.Equal(t, 3, s.StocksWithErrors)
	assert.Equal(t, 2, s.TotalTrades)
	assert.Equal(t, 1, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.Equal(t, 50.0, s.OverallWinRate)
	assert.InDelta(t, (50.0-33.3333)/2, s.AvgReturnPerTrade, 1e-3)
	assert.InDelta(t, (50.0-33.3333)/2, s.MedianReturn, 1e-3)
	assert.InDelta(t, 41.6667, s.StdReturn, 1e-3)
	assert.InDelta(t, 50.0, s.AvgWinRatePerStock, 1e-9)

	require.Len(t, pr.Best, 2)
	assert.Equal(t, "WIN", pr.Best[0].Ticker)
	assert.Equal(t, "LOSS", pr.Worst[len(pr.Worst)-1].Ticker)

	assert.Contains(t, pr.Errors, "MISSING")
	assert.Contains(t, pr.Errors, "SHORT")
	assert.NotContains(t, pr.Errors, "IGNORED")
}

func TestRunPortfolio_NoResults(t *testing.T) {
	_, err := RunPortfolio(context.Background(), stubFetcher{}, []string{"A", "B"}, marketdata.DefaultRange, 0, smallConfig())
	assert.True(t, errors.Is(err, ErrNoResults))
}

func TestRunPortfolio_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunPortfolio(ctx, stubFetcher{}, []string{"A"}, marketdata.DefaultRange, 0, smallConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
