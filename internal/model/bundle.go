package model

import (
	"fmt"
	"sort"
	"time"
)

// CrossKind distinguishes the direction of a moving-average crossover.
type CrossKind string

const (
	GoldenCross CrossKind = "golden_cross" // fast moves above slow
	DeadCross   CrossKind = "dead_cross"   // fast moves below slow
)

// CrossPair names the fast and slow SMA windows compared for crossovers.
type CrossPair struct {
	Fast int `json:"fast" yaml:"fast"`
	Slow int `json:"slow" yaml:"slow"`
}

func (p CrossPair) String() string { return fmt.Sprintf("SMA%d/SMA%d", p.Fast, p.Slow) }

// CrossEvent records a crossover at a bar index.
type CrossEvent struct {
	Kind  CrossKind `json:"kind"`
	Index int       `json:"index"`
	Date  time.Time `json:"date"`
	Pair  CrossPair `json:"pair"`
	Fast  float64   `json:"fast"`
	Slow  float64   `json:"slow"`
}

// MACDSeries holds the MACD line, its signal line and their difference.
type MACDSeries struct {
	Line      Series `json:"line"`
	Signal    Series `json:"signal"`
	Histogram Series `json:"histogram"`
}

// BollingerSeries holds the three bands plus bandwidth in percent of the middle band.
type BollingerSeries struct {
	Upper     Series `json:"upper"`
	Middle    Series `json:"middle"`
	Lower     Series `json:"lower"`
	Bandwidth Series `json:"bandwidth"`
}

// IndicatorBundle is the full indicator output for one price series.
// Every series has the same length as Dates.
type IndicatorBundle struct {
	Ticker    string          `json:"ticker"`
	Dates     []time.Time     `json:"dates"`
	MA        map[int]Series  `json:"ma"`
	RSI       Series          `json:"rsi"`
	MACD      MACDSeries      `json:"macd"`
	Bollinger BollingerSeries `json:"bollinger"`
	Crosses   []CrossEvent    `json:"crosses"`
}

// Len returns the number of indices covered by the bundle.
func (b *IndicatorBundle) Len() int { return len(b.Dates) }

// MAWindows returns the computed SMA windows in ascending order.
func (b *IndicatorBundle) MAWindows() []int {
	out := make([]int, 0, len(b.MA))
	for w := range b.MA {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

// CrossesFor returns the events of a single pair in index order.
func (b *IndicatorBundle) CrossesFor(p CrossPair) []CrossEvent {
	var out []CrossEvent
	for _, ev := range b.Crosses {
		if ev.Pair == p {
			out = append(out, ev)
		}
	}
	return out
}
