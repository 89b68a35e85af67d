// Package signal scans a computed indicator bundle for historical trading
// signals within a trailing window of bars.
package signal

import (
	"fmt"
	"sort"
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// Type names a signal condition.
type Type string

const (
	GoldenCross   Type = "golden_cross"
	DeadCross     Type = "dead_cross"
	RSIOversold   Type = "rsi_oversold"
	RSIOverbought Type = "rsi_overbought"
	MACDBullish   Type = "macd_bullish"
	MACDBearish   Type = "macd_bearish"
	BBLowerTouch  Type = "bb_lower_touch"
	BBUpperTouch  Type = "bb_upper_touch"
)

// DefaultLookback is the trailing bar count scanned when none is given.
const DefaultLookback = 30

// Signal is one detected event.
type Signal struct {
	Type        Type      `json:"type"`
	Index       int       `json:"index"`
	Date        time.Time `json:"date"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Bullish     bool      `json:"bullish"`
}

// Options tunes detection.
type Options struct {
	Lookback      int     // bars scanned from the end; <= 0 means DefaultLookback
	RSIOversold   float64 // 0 means 30
	RSIOverbought float64 // 0 means 70
}

func (o Options) withDefaults() Options {
	if o.Lookback <= 0 {
		o.Lookback = DefaultLookback
	}
	if o.RSIOversold == 0 {
		o.RSIOversold = 30
	}
	if o.RSIOverbought == 0 {
		o.RSIOverbought = 70
	}
	return o
}

// Detect returns every signal inside the last opts.Lookback bars of series,
// newest first. Events on the same date keep detection order: crosses
// (per configured pair), RSI, MACD, Bollinger.
//
// Indicators come from the full history in b; the window only limits where
// events may sit. Events that compare two bars need both inside the window.
func Detect(b *model.IndicatorBundle, series model.PriceSeries, opts Options) []Signal {
	opts = opts.withDefaults()
	n := b.Len()
	if series.Len() < n {
		n = series.Len()
	}
	if n == 0 {
		return nil
	}
	start := n - opts.Lookback
	if start < 0 {
		start = 0
	}

	d := detector{b: b, series: series, start: start, n: n}
	d.crosses()
	d.rsi(opts.RSIOversold, opts.RSIOverbought)
	d.macd()
	d.bollinger()

	out := d.out
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

type detector struct {
	b      *model.IndicatorBundle
	series model.PriceSeries
	start  int
	n      int
	out    []Signal
}

func (d *detector) add(t Type, i int, bullish bool, desc string) {
	d.out = append(d.out, Signal{
		Type:        t,
		Index:       i,
		Date:        d.series.Bars[i].Date,
		Price:       d.series.Bars[i].Close,
		Description: desc,
		Bullish:     bullish,
	})
}

// inWindow reports whether a two-bar event at i has both bars in the window.
func (d *detector) inWindow(i int) bool {
	return i-1 >= d.start && i < d.n
}

func (d *detector) crosses() {
	for _, ev := range d.b.Crosses {
		if !d.inWindow(ev.Index) {
			continue
		}
		switch ev.Kind {
		case model.GoldenCross:
			d.add(GoldenCross, ev.Index, true,
				fmt.Sprintf("Golden cross: SMA%d crossed above SMA%d", ev.Pair.Fast, ev.Pair.Slow))
		case model.DeadCross:
			d.add(DeadCross, ev.Index, false,
				fmt.Sprintf("Dead cross: SMA%d crossed below SMA%d", ev.Pair.Fast, ev.Pair.Slow))
		}
	}
}

func (d *detector) rsi(oversold, overbought float64) {
	for i := d.start + 1; i < d.n; i++ {
		prev, ok1 := d.b.RSI.At(i - 1)
		cur, ok2 := d.b.RSI.At(i)
		if !ok1 || !ok2 {
			continue
		}
		if prev < oversold && cur >= oversold {
			d.add(RSIOversold, i, true, fmt.Sprintf("RSI recovered from oversold: %.1f", cur))
		}
		if prev > overbought && cur <= overbought {
			d.add(RSIOverbought, i, false, fmt.Sprintf("RSI fell back from overbought: %.1f", cur))
		}
	}
}

func (d *detector) macd() {
	events := indicator.DetectCrosses(d.b.MACD.Line, d.b.MACD.Signal, nil, model.CrossPair{})
	for _, ev := range events {
		if !d.inWindow(ev.Index) {
			continue
		}
		if ev.Kind == model.GoldenCross {
			d.add(MACDBullish, ev.Index, true, "MACD crossed above its signal line")
		} else {
			d.add(MACDBearish, ev.Index, false, "MACD crossed below its signal line")
		}
	}
}

func (d *detector) bollinger() {
	for i := d.start; i < d.n; i++ {
		lower, ok1 := d.b.Bollinger.Lower.At(i)
		upper, ok2 := d.b.Bollinger.Upper.At(i)
		if !ok1 || !ok2 {
			continue
		}
		c := d.series.Bars[i].Close
		switch {
		case c <= lower:
			d.add(BBLowerTouch, i, true, "Close touched the lower Bollinger band")
		case c >= upper:
			d.add(BBUpperTouch, i, false, "Close touched the upper Bollinger band")
		}
	}
}
