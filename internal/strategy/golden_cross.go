package strategy

import (
	"log"

	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// GoldenCross implements an SMA crossover strategy.
//
// Buy signal: fast SMA crosses above slow SMA (golden cross)
// Sell signal: fast SMA crosses below slow SMA (dead cross)
//
// Optional RSI filter prevents buying when overbought (>70)
// or selling when oversold (<30).
type GoldenCross struct {
	name  string
	pair  model.CrossPair
	fast  *indicator.SMA
	slow  *indicator.SMA
	cross indicator.CrossDetector

	rsiEnabled bool
	rsiPeriod  int
	rsi        *indicator.RSI
}

// NewGoldenCross creates a crossover strategy for pair. rsiPeriod is used
// only when enableRSI is set.
func NewGoldenCross(pair model.CrossPair, enableRSI bool, rsiPeriod int) *GoldenCross {
	g := &GoldenCross{
		name:       "Golden_Cross_" + pair.String(),
		pair:       pair,
		rsiEnabled: enableRSI,
		rsiPeriod:  rsiPeriod,
	}
	g.Reset()
	return g
}

func (g *GoldenCross) Name() string { return g.name }

func (g *GoldenCross) Reset() {
	g.fast = indicator.NewSMA(g.pair.Fast)
	g.slow = indicator.NewSMA(g.pair.Slow)
	g.cross.Reset()
	if g.rsiEnabled {
		g.rsi = indicator.NewRSI(g.rsiPeriod)
	}
}

func (g *GoldenCross) OnBar(index int, bar model.PriceBar) *Signal {
	g.fast.Update(bar.Close)
	g.slow.Update(bar.Close)
	if g.rsiEnabled {
		g.rsi.Update(bar.Close)
	}

	kind, ok := g.cross.Update(reading(g.fast), reading(g.slow))
	if !ok {
		return nil
	}

	sig := &Signal{
		StrategyName: g.name,
		Index:        index,
		Date:         bar.Date,
		Price:        bar.Close,
	}

	switch kind {
	case model.GoldenCross:
		if g.rsiEnabled && g.rsi.Ready() && g.rsi.Value() > 70 {
			log.Printf("[strategy] %s: golden cross filtered by RSI %.1f > 70", g.name, g.rsi.Value())
			return nil
		}
		sig.Action = ActionBuy
		sig.Reason = "SMA golden cross (fast > slow)"
	case model.DeadCross:
		if g.rsiEnabled && g.rsi.Ready() && g.rsi.Value() < 30 {
			log.Printf("[strategy] %s: dead cross filtered by RSI %.1f < 30", g.name, g.rsi.Value())
			return nil
		}
		sig.Action = ActionSell
		sig.Reason = "SMA dead cross (fast < slow)"
	}
	return sig
}

func reading(ind indicator.Indicator) model.Value {
	if !ind.Ready() {
		return model.Value{}
	}
	return model.Some(ind.Value())
}
