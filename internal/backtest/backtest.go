// Package backtest replays the moving-average crossover strategy over daily
// history and reports trade statistics.
//
// Rules: buy at the close of a golden-cross bar when flat, sell at the close
// of a dead-cross bar when long, and close any open trade at the last bar.
package backtest

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
	"github.com/studio2230704/technical-analysis-dashboard/internal/strategy"
)

var (
	ErrInsufficientData = errors.New("backtest: insufficient history")
	ErrNoTrades         = errors.New("backtest: no trades")
	ErrNoResults        = errors.New("backtest: no valid results")
)

var hundred = decimal.NewFromInt(100)

// Config controls a backtest run.
type Config struct {
	Pair          model.CrossPair `yaml:"pair" json:"pair"`
	MinBars       int             `yaml:"min_bars" json:"min_bars"`
	RSIFilter     bool            `yaml:"rsi_filter" json:"rsi_filter"`
	RSIPeriod     int             `yaml:"rsi_period" json:"rsi_period"`
	InitialEquity float64         `yaml:"initial_equity" json:"initial_equity"`
	Workers       int             `yaml:"workers" json:"workers"`
}

// DefaultConfig returns the 25/75 crossover with no RSI filter.
func DefaultConfig() Config {
	return Config{
		Pair:          model.CrossPair{Fast: 25, Slow: 75},
		MinBars:       100,
		RSIPeriod:     14,
		InitialEquity: 100,
		Workers:       4,
	}
}

// Trade is one round trip.
type Trade struct {
	Ticker      string    `json:"ticker"`
	EntryDate   time.Time `json:"entry_date"`
	EntryPrice  float64   `json:"entry_price"`
	ExitDate    time.Time `json:"exit_date"`
	ExitPrice   float64   `json:"exit_price"`
	ReturnPct   float64   `json:"return_pct"`
	ClosedAtEnd bool      `json:"closed_at_end,omitempty"`
}

// Winner reports a strictly positive return.
func (t Trade) Winner() bool { return t.ReturnPct > 0 }

// Result summarises one ticker.
type Result struct {
	RunID         string  `json:"run_id"`
	Ticker        string  `json:"ticker"`
	Strategy      string  `json:"strategy"`
	Bars          int     `json:"bars"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgReturn     float64 `json:"avg_return"`
	TotalReturn   float64 `json:"total_return"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	FinalEquity   float64 `json:"final_equity"`
	Trades        []Trade `json:"trades"`
}

type position struct {
	date  time.Time
	price decimal.Decimal
}

// Run backtests a single series.
func Run(series model.PriceSeries, cfg Config) (*Result, error) {
	if cfg.MinBars > 0 && series.Len() < cfg.MinBars {
		return nil, fmt.Errorf("%w: %s has %d bars, need %d", ErrInsufficientData, series.Ticker, series.Len(), cfg.MinBars)
	}
	if cfg.Pair.Fast <= 0 || cfg.Pair.Slow <= 0 {
		return nil, fmt.Errorf("backtest: invalid pair %s", cfg.Pair)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = 100
	}

	strat := strategy.NewGoldenCross(cfg.Pair, cfg.RSIFilter, cfg.RSIPeriod)
	signals := strategy.Replay(strat, series)

	var (
		trades []Trade
		open   *position
		equity = []decimal.Decimal{decimal.NewFromFloat(cfg.InitialEquity)}
	)
	closeAt := func(date time.Time, price float64, atEnd bool) {
		exit := decimal.NewFromFloat(price)
		ret := exit.Sub(open.price).Div(open.price).Mul(hundred)
		last := equity[len(equity)-1]
		equity = append(equity, last.Mul(decimal.NewFromInt(1).Add(ret.Div(hundred))))
		trades = append(trades, Trade{
			Ticker:      series.Ticker,
			EntryDate:   open.date,
			EntryPrice:  open.price.InexactFloat64(),
			ExitDate:    date,
			ExitPrice:   price,
			ReturnPct:   ret.InexactFloat64(),
			ClosedAtEnd: atEnd,
		})
		open = nil
	}

	for _, sig := range signals {
		switch {
		case sig.Action == strategy.ActionBuy && open == nil && sig.Price <= 0:
			log.Printf("[backtest] %s: skipping entry at non-positive close %v on %s",
				series.Ticker, sig.Price, sig.Date.Format("2006-01-02"))
		case sig.Action == strategy.ActionBuy && open == nil:
			open = &position{date: sig.Date, price: decimal.NewFromFloat(sig.Price)}
		case sig.Action == strategy.ActionSell && open != nil:
			closeAt(sig.Date, sig.Price, false)
		}
	}
	if open != nil {
		last, _ := series.Last()
		closeAt(last.Date, last.Close, true)
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTrades, series.Ticker)
	}

	res := &Result{
		RunID:    ulid.Make().String(),
		Ticker:   series.Ticker,
		Strategy: strat.Name(),
		Bars:     series.Len(),
		Trades:   trades,
	}
	sum := decimal.Zero
	for _, t := range trades {
		if t.Winner() {
			res.WinningTrades++
		} else {
			res.LosingTrades++
		}
		sum = sum.Add(decimal.NewFromFloat(t.ReturnPct))
	}
	res.TotalTrades = len(trades)
	res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades) * 100
	res.AvgReturn = sum.Div(decimal.NewFromInt(int64(res.TotalTrades))).InexactFloat64()

	first, final := equity[0], equity[len(equity)-1]
	res.FinalEquity = final.InexactFloat64()
	res.TotalReturn = final.Div(first).Sub(decimal.NewFromInt(1)).Mul(hundred).InexactFloat64()
	res.MaxDrawdown = maxDrawdown(equity)
	return res, nil
}

// maxDrawdown returns the deepest peak-to-trough fall of the equity curve in
// percent, as a value <= 0.
func maxDrawdown(curve []decimal.Decimal) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0]
	worst := decimal.Zero
	for _, e := range curve {
		if e.GreaterThan(peak) {
			peak = e
		}
		if peak.IsZero() {
			continue
		}
		dd := e.Sub(peak).Div(peak).Mul(hundred)
		if dd.LessThan(worst) {
			worst = dd
		}
	}
	return worst.InexactFloat64()
}
