// Package strategy provides bar-driven trading strategies.
//
// A Strategy receives daily bars in order and emits trading signals (BUY/SELL).
// Replay drives a strategy over a full price series.
package strategy

import (
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// Signal represents a trading signal emitted by a strategy.
type Signal struct {
	StrategyName string    `json:"strategy_name"`
	Action       Action    `json:"action"`
	Ticker       string    `json:"ticker"`
	Index        int       `json:"index"`
	Date         time.Time `json:"date"`
	Price        float64   `json:"price"`
	Reason       string    `json:"reason"`
}

// Action represents a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Strategy is the interface that all strategies must implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnBar is called for each bar in date order.
	// Return a Signal if the strategy wants to act, or nil to skip.
	OnBar(index int, bar model.PriceBar) *Signal

	// Reset clears accumulated state so the strategy can replay another series.
	Reset()
}

// Replay resets s and feeds it every bar of series, collecting its signals.
func Replay(s Strategy, series model.PriceSeries) []Signal {
	s.Reset()
	var out []Signal
	for i, bar := range series.Bars {
		if sig := s.OnBar(i, bar); sig != nil {
			sig.Ticker = series.Ticker
			out = append(out, *sig)
		}
	}
	return out
}
