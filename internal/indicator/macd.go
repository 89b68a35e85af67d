package indicator

import "github.com/studio2230704/technical-analysis-dashboard/internal/model"

// MACD tracks the difference between a fast and a slow EMA together with an
// EMA of that difference (the signal line). The signal EMA is fed only once
// the MACD line exists, so it is seeded from the first signal-period line values.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	line   float64
	ready  bool
}

// NewMACD creates a MACD indicator; fast must be shorter than slow.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(price float64) {
	m.fast.Update(price)
	m.slow.Update(price)
	if !m.fast.Ready() || !m.slow.Ready() {
		return
	}
	m.line = m.fast.Value() - m.slow.Value()
	m.ready = true
	m.signal.Update(m.line)
}

// Value returns the MACD line.
func (m *MACD) Value() float64 { return m.line }
func (m *MACD) Ready() bool    { return m.ready }

// Signal returns the signal line and whether it is available yet.
func (m *MACD) Signal() (float64, bool) {
	return m.signal.Value(), m.ready && m.signal.Ready()
}

// Histogram returns line minus signal once both exist.
func (m *MACD) Histogram() (float64, bool) {
	sig, ok := m.Signal()
	if !ok {
		return 0, false
	}
	return m.line - sig, true
}

// MACDSeries computes line, signal and histogram over closes.
// Non-positive periods yield all-absent series.
func MACDSeries(closes []float64, fast, slow, signal int) model.MACDSeries {
	n := len(closes)
	out := model.MACDSeries{
		Line:      model.NewSeries(n),
		Signal:    model.NewSeries(n),
		Histogram: model.NewSeries(n),
	}
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return out
	}

	m := NewMACD(fast, slow, signal)
	for i, c := range closes {
		m.Update(c)
		out.Line[i] = current(m)
		if sig, ok := m.Signal(); ok {
			out.Signal[i] = model.Some(sig)
		}
		if h, ok := m.Histogram(); ok {
			out.Histogram[i] = model.Some(h)
		}
	}
	return out
}
