package indicator

import (
	"math"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// Bollinger computes Bollinger Bands: an SMA middle band with upper and lower
// bands k population standard deviations away.
type Bollinger struct {
	sma   *SMA
	k     float64
	std   float64
	upper float64
	lower float64
}

// NewBollinger creates Bollinger Bands over period closes with multiplier k.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{sma: NewSMA(period), k: k}
}

func (b *Bollinger) Name() string { return "BB" }

func (b *Bollinger) Update(price float64) {
	b.sma.Update(price)
	if !b.sma.Ready() {
		return
	}

	mean := b.sma.Value()
	var ss float64
	for _, x := range b.sma.window() {
		d := x - mean
		ss += d * d
	}
	b.std = math.Sqrt(ss / float64(b.sma.period))
	b.upper = mean + b.k*b.std
	b.lower = mean - b.k*b.std
}

// Value returns the middle band.
func (b *Bollinger) Value() float64 { return b.sma.Value() }
func (b *Bollinger) Ready() bool    { return b.sma.Ready() }

// Bands returns upper, middle and lower.
func (b *Bollinger) Bands() (upper, middle, lower float64) {
	return b.upper, b.sma.Value(), b.lower
}

// StdDev returns the population standard deviation of the current window.
func (b *Bollinger) StdDev() float64 { return b.std }

// Bandwidth returns (upper-lower)/middle in percent. Undefined for a zero middle band.
func (b *Bollinger) Bandwidth() (float64, bool) {
	mid := b.sma.Value()
	if !b.Ready() || mid == 0 {
		return 0, false
	}
	return (b.upper - b.lower) / mid * 100, true
}

// BollingerSeries computes the bands over closes. All values are absent
// while i < w-1, and everywhere for a non-positive window.
func BollingerSeries(closes []float64, w int, k float64) model.BollingerSeries {
	n := len(closes)
	out := model.BollingerSeries{
		Upper:     model.NewSeries(n),
		Middle:    model.NewSeries(n),
		Lower:     model.NewSeries(n),
		Bandwidth: model.NewSeries(n),
	}
	if w <= 0 {
		return out
	}

	bb := NewBollinger(w, k)
	for i, c := range closes {
		bb.Update(c)
		if !bb.Ready() {
			continue
		}
		up, mid, lo := bb.Bands()
		out.Upper[i] = model.Some(up)
		out.Middle[i] = model.Some(mid)
		out.Lower[i] = model.Some(lo)
		if bw, ok := bb.Bandwidth(); ok {
			out.Bandwidth[i] = model.Some(bw)
		}
	}
	return out
}
