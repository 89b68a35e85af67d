// Package alert evaluates the latest bar of a watched ticker against its
// alert settings.
package alert

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
	"github.com/studio2230704/technical-analysis-dashboard/internal/watchlist"
)

// DefaultPair is the moving-average pair watched for cross alerts.
var DefaultPair = model.CrossPair{Fast: 25, Slow: 75}

// Checker raises alerts for the last bar of a series.
type Checker struct {
	pair model.CrossPair
	now  func() time.Time
}

// NewChecker creates a checker for the given cross pair. A zero pair means
// DefaultPair.
func NewChecker(pair model.CrossPair) *Checker {
	if pair.Fast == 0 && pair.Slow == 0 {
		pair = DefaultPair
	}
	return &Checker{pair: pair, now: time.Now}
}

// Pair returns the watched moving-average pair.
func (c *Checker) Pair() model.CrossPair { return c.pair }

// Check evaluates only the final bar of series against entry:
//
//	golden/dead cross of the pair at the last index (entry.CrossEnabled)
//	RSI < entry.RSIOversold   → rsi_oversold
//	RSI > entry.RSIOverbought → rsi_overbought
//
// The bundle must have been computed from series with both pair windows.
func (c *Checker) Check(entry watchlist.Entry, b *model.IndicatorBundle, series model.PriceSeries) []model.Alert {
	last, ok := series.Last()
	if !ok || b.Len() != series.Len() {
		return nil
	}
	i := series.Len() - 1
	rsi := b.RSI[i]

	var alerts []model.Alert
	add := func(t model.AlertType) {
		a := model.Alert{
			ID:        ulid.Make().String(),
			Ticker:    entry.Ticker,
			Name:      entry.Name,
			Type:      t,
			Price:     last.Close,
			RSI:       rsi,
			Date:      last.Date,
			CreatedAt: c.now().UTC(),
		}
		a.Message = Message(a, c.pair)
		alerts = append(alerts, a)
	}

	if entry.CrossEnabled {
		if kind, ok := c.crossAtLast(b); ok {
			if kind == model.GoldenCross {
				add(model.AlertGoldenCross)
			} else {
				add(model.AlertDeadCross)
			}
		}
	}

	if rsi.Valid {
		if rsi.V < entry.RSIOversold {
			add(model.AlertRSIOversold)
		}
		if rsi.V > entry.RSIOverbought {
			add(model.AlertRSIOverbought)
		}
	}
	return alerts
}

// crossAtLast compares the pair at the last two indices.
func (c *Checker) crossAtLast(b *model.IndicatorBundle) (model.CrossKind, bool) {
	fast, ok1 := b.MA[c.pair.Fast]
	slow, ok2 := b.MA[c.pair.Slow]
	n := b.Len()
	if !ok1 || !ok2 || n < 2 || len(fast) < n || len(slow) < n {
		return "", false
	}
	var d indicator.CrossDetector
	d.Update(fast[n-2], slow[n-2])
	return d.Update(fast[n-1], slow[n-1])
}

// Message renders the human-readable body of an alert.
func Message(a model.Alert, pair model.CrossPair) string {
	date := a.Date.Format("2006-01-02")
	switch a.Type {
	case model.AlertGoldenCross:
		return fmt.Sprintf("Golden cross on %s: SMA%d crossed above SMA%d at %.2f.\nPossible buy signal.",
			date, pair.Fast, pair.Slow, a.Price)
	case model.AlertDeadCross:
		return fmt.Sprintf("Dead cross on %s: SMA%d crossed below SMA%d at %.2f.\nPossible sell signal.",
			date, pair.Fast, pair.Slow, a.Price)
	case model.AlertRSIOversold:
		return fmt.Sprintf("RSI %.1f on %s: oversold at %.2f.\nA rebound is possible.", a.RSI.V, date, a.Price)
	case model.AlertRSIOverbought:
		return fmt.Sprintf("RSI %.1f on %s: overbought at %.2f.\nA pullback is possible.", a.RSI.V, date, a.Price)
	}
	return fmt.Sprintf("%s on %s at %.2f", a.Type, date, a.Price)
}
