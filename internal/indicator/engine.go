package indicator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// ErrInvalidConfiguration is returned when an engine configuration names a
// non-positive period or an inverted fast/slow pair.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrMalformedInput is returned for series with unordered or duplicate dates.
var ErrMalformedInput = model.ErrMalformedInput

// Config selects the indicators and their parameters.
type Config struct {
	MAWindows       []int             `yaml:"ma_windows" json:"ma_windows"`
	RSIPeriod       int               `yaml:"rsi_period" json:"rsi_period"`
	MACDFast        int               `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow        int               `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal      int               `yaml:"macd_signal" json:"macd_signal"`
	BollingerWindow int               `yaml:"bollinger_window" json:"bollinger_window"`
	BollingerK      float64           `yaml:"bollinger_k" json:"bollinger_k"`
	CrossPairs      []model.CrossPair `yaml:"cross_pairs" json:"cross_pairs"`
}

// DefaultConfig returns the dashboard defaults: SMA 5/25/75/200, RSI 14,
// MACD 12/26/9, Bollinger 20/2.0, crosses 5/25 and 25/75.
func DefaultConfig() Config {
	return Config{
		MAWindows:       []int{5, 25, 75, 200},
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerWindow: 20,
		BollingerK:      2.0,
		CrossPairs:      []model.CrossPair{{Fast: 5, Slow: 25}, {Fast: 25, Slow: 75}},
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	for _, w := range c.MAWindows {
		if w <= 0 {
			return fmt.Errorf("%w: ma window must be > 0, got %d", ErrInvalidConfiguration, w)
		}
	}
	if c.RSIPeriod <= 0 {
		return fmt.Errorf("%w: rsi_period must be > 0, got %d", ErrInvalidConfiguration, c.RSIPeriod)
	}
	if c.MACDFast <= 0 || c.MACDSlow <= 0 || c.MACDSignal <= 0 {
		return fmt.Errorf("%w: macd periods must be > 0, got %d/%d/%d",
			ErrInvalidConfiguration, c.MACDFast, c.MACDSlow, c.MACDSignal)
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("%w: macd_fast (%d) must be < macd_slow (%d)",
			ErrInvalidConfiguration, c.MACDFast, c.MACDSlow)
	}
	if c.BollingerWindow <= 0 {
		return fmt.Errorf("%w: bollinger_window must be > 0, got %d", ErrInvalidConfiguration, c.BollingerWindow)
	}
	if c.BollingerK < 0 || math.IsNaN(c.BollingerK) || math.IsInf(c.BollingerK, 0) {
		return fmt.Errorf("%w: bollinger_k must be a finite value >= 0, got %v", ErrInvalidConfiguration, c.BollingerK)
	}
	for _, p := range c.CrossPairs {
		if p.Fast <= 0 || p.Slow <= 0 {
			return fmt.Errorf("%w: cross pair %s has a non-positive window", ErrInvalidConfiguration, p)
		}
		if p.Fast >= p.Slow {
			return fmt.Errorf("%w: cross pair %s: fast must be < slow", ErrInvalidConfiguration, p)
		}
	}
	return nil
}

// Windows returns every SMA window the engine computes: the configured MA
// windows plus any window named only by a cross pair, ascending and unique.
func (c Config) Windows() []int {
	seen := make(map[int]struct{}, len(c.MAWindows)+2*len(c.CrossPairs))
	for _, w := range c.MAWindows {
		seen[w] = struct{}{}
	}
	for _, p := range c.CrossPairs {
		seen[p.Fast] = struct{}{}
		seen[p.Slow] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

// MaxLookback returns the longest history any configured indicator needs
// before producing its first value.
func (c Config) MaxLookback() int {
	n := c.RSIPeriod + 1
	if v := c.MACDSlow + c.MACDSignal - 1; v > n {
		n = v
	}
	if c.BollingerWindow > n {
		n = c.BollingerWindow
	}
	for _, w := range c.Windows() {
		if w > n {
			n = w
		}
	}
	return n
}

// Engine computes indicator bundles for a fixed, validated configuration.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	cfg     Config
	windows []int
}

// NewEngine validates cfg and returns an engine bound to it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.MAWindows = append([]int(nil), cfg.MAWindows...)
	cfg.CrossPairs = append([]model.CrossPair(nil), cfg.CrossPairs...)
	return &Engine{cfg: cfg, windows: cfg.Windows()}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.MAWindows = append([]int(nil), e.cfg.MAWindows...)
	cfg.CrossPairs = append([]model.CrossPair(nil), e.cfg.CrossPairs...)
	return cfg
}

// Compute derives every configured indicator over s. Insufficient history
// shows up as absent values, never as an error. An empty series yields a
// bundle of empty series.
func (e *Engine) Compute(s model.PriceSeries) (*model.IndicatorBundle, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("compute %s: %w", s.Ticker, err)
	}

	closes := s.Closes()
	b := &model.IndicatorBundle{
		Ticker:    s.Ticker,
		Dates:     s.Dates(),
		MA:        make(map[int]model.Series, len(e.windows)),
		RSI:       RSISeries(closes, e.cfg.RSIPeriod),
		MACD:      MACDSeries(closes, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal),
		Bollinger: BollingerSeries(closes, e.cfg.BollingerWindow, e.cfg.BollingerK),
		Crosses:   []model.CrossEvent{},
	}
	for _, w := range e.windows {
		b.MA[w] = SMASeries(closes, w)
	}

	for _, p := range e.cfg.CrossPairs {
		b.Crosses = append(b.Crosses, DetectCrosses(b.MA[p.Fast], b.MA[p.Slow], b.Dates, p)...)
	}
	// Pairs were appended in configured order, so a stable sort keeps
	// same-index events in that order.
	sort.SliceStable(b.Crosses, func(i, j int) bool {
		return b.Crosses[i].Index < b.Crosses[j].Index
	})

	return b, nil
}

// Compute validates cfg and computes the bundle for s in one call.
func Compute(s model.PriceSeries, cfg Config) (*model.IndicatorBundle, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return e.Compute(s)
}
