package backtest

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/studio2230704/technical-analysis-dashboard/internal/marketdata"
)

// Performer is one row of the best/worst tables.
type Performer struct {
	Ticker      string  `json:"ticker"`
	TotalReturn float64 `json:"total_return"`
	WinRate     float64 `json:"win_rate"`
	Trades      int     `json:"trades"`
}

// Summary aggregates every analysed ticker.
type Summary struct {
	StocksAnalyzed     int     `json:"stocks_analyzed"`
	StocksWithErrors   int     `json:"stocks_with_errors"`
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	OverallWinRate     float64 `json:"overall_win_rate"`
	AvgReturnPerTrade  float64 `json:"avg_return_per_trade"`
	AvgWinRatePerStock float64 `json:"avg_win_rate_per_stock"`
	AvgMaxDrawdown     float64 `json:"avg_max_drawdown"`
	MedianReturn       float64 `json:"median_return"`
	StdReturn          float64 `json:"std_return"`
}

// PortfolioResult is the outcome of RunPortfolio.
type PortfolioResult struct {
	RunID   string            `json:"run_id"`
	Summary Summary           `json:"summary"`
	Best    []Performer       `json:"best_performers"`
	Worst   []Performer       `json:"worst_performers"`
	Results []*Result         `json:"results"`
	Errors  map[string]string `json:"errors,omitempty"`
}

const performersShown = 10

// RunPortfolio fetches and backtests up to limit tickers (limit <= 0 means all).
// Tickers that fail to fetch, have too little history or never trade are
// counted in StocksWithErrors and listed in Errors.
func RunPortfolio(ctx context.Context, f marketdata.Fetcher, tickers []string, r marketdata.Range, limit int, cfg Config) (*PortfolioResult, error) {
	if limit > 0 && len(tickers) > limit {
		tickers = tickers[:limit]
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	log.Printf("[backtest] running %s on %d tickers (%s)", cfg.Pair, len(tickers), r)

	type outcome struct {
		res *Result
		err error
	}
	outcomes := make([]outcome, len(tickers))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, t := range tickers {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ticker string) {
			defer wg.Done()
			defer func() { <-sem }()

			series, err := f.Fetch(ctx, ticker, r)
			if err != nil {
				outcomes[i] = outcome{err: err}
				return
			}
			res, err := Run(series, cfg)
			outcomes[i] = outcome{res: res, err: err}
		}(i, t)

		if (i+1)%10 == 0 {
			log.Printf("[backtest] progress: %d/%d", i+1, len(tickers))
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pr := &PortfolioResult{RunID: ulid.Make().String(), Errors: make(map[string]string)}
	for i, o := range outcomes {
		if o.err != nil || o.res == nil {
			pr.Summary.StocksWithErrors++
			if o.err != nil {
				pr.Errors[tickers[i]] = o.err.Error()
				if !errors.Is(o.err, ErrNoTrades) && !errors.Is(o.err, ErrInsufficientData) {
					log.Printf("[backtest] %s: %v", tickers[i], o.err)
				}
			}
			continue
		}
		pr.Results = append(pr.Results, o.res)
	}
	if len(pr.Results) == 0 {
		return pr, ErrNoResults
	}

	pr.Summary = summarize(pr.Results, pr.Summary.StocksWithErrors)

	sorted := make([]*Result, len(pr.Results))
	copy(sorted, pr.Results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalReturn > sorted[j].TotalReturn })
	n := performersShown
	if n > len(sorted) {
		n = len(sorted)
	}
	for _, res := range sorted[:n] {
		pr.Best = append(pr.Best, performer(res))
	}
	for _, res := range sorted[len(sorted)-n:] {
		pr.Worst = append(pr.Worst, performer(res))
	}
	return pr, nil
}

func performer(r *Result) Performer {
	return Performer{Ticker: r.Ticker, TotalReturn: r.TotalReturn, WinRate: r.WinRate, Trades: r.TotalTrades}
}

func summarize(results []*Result, errCount int) Summary {
	s := Summary{StocksAnalyzed: len(results), StocksWithErrors: errCount}

	var returns []float64
	var winRateSum, ddSum float64
	for _, r := range results {
		winRateSum += r.WinRate
		ddSum += r.MaxDrawdown
		for _, t := range r.Trades {
			returns = append(returns, t.ReturnPct)
			if t.Winner() {
				s.WinningTrades++
			} else {
				s.LosingTrades++
			}
		}
	}
	s.TotalTrades = len(returns)
	s.AvgWinRatePerStock = winRateSum / float64(len(results))
	s.AvgMaxDrawdown = ddSum / float64(len(results))
	if s.TotalTrades > 0 {
		s.OverallWinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.AvgReturnPerTrade = mean(returns)
		s.MedianReturn = median(returns)
		s.StdReturn = stddev(returns)
	}
	return s
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	c := make([]float64, len(xs))
	copy(c, xs)
	sort.Float64s(c)
	m := len(c) / 2
	if len(c)%2 == 1 {
		return c[m]
	}
	return (c[m-1] + c[m]) / 2
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	mu := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - mu) * (x - mu)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
