package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	json "github.com/goccy/go-json"
)

// ErrMalformedInput is returned when a price series breaks the ordering or
// completeness rules required by the indicator engine.
var ErrMalformedInput = errors.New("malformed input")

// PriceBar is a single daily OHLCV observation for one instrument.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *PriceBar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// PriceSeries is a chronologically ordered run of bars for one ticker.
// Dates are strictly increasing; use Validate before trusting external input.
type PriceSeries struct {
	Ticker string     `json:"ticker"`
	Bars   []PriceBar `json:"bars"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Validate checks that dates are strictly increasing and every close is finite.
// The series is never repaired; the first offending index is reported.
func (s PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return fmt.Errorf("%w: non-finite close at index %d", ErrMalformedInput, i)
		}
		if i == 0 {
			continue
		}
		prev := s.Bars[i-1].Date
		if b.Date.Equal(prev) {
			return fmt.Errorf("%w: duplicate date %s at index %d", ErrMalformedInput, b.Date.Format("2006-01-02"), i)
		}
		if b.Date.Before(prev) {
			return fmt.Errorf("%w: date %s at index %d precedes %s", ErrMalformedInput,
				b.Date.Format("2006-01-02"), i, prev.Format("2006-01-02"))
		}
	}
	return nil
}

// Closes returns the close prices in bar order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns the bar dates in order.
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// Last returns the most recent bar.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Since returns the bars dated on or after from, sharing the backing array.
func (s PriceSeries) Since(from time.Time) PriceSeries {
	for i, b := range s.Bars {
		if !b.Date.Before(from) {
			return PriceSeries{Ticker: s.Ticker, Bars: s.Bars[i:]}
		}
	}
	return PriceSeries{Ticker: s.Ticker}
}
