package indicator

import "github.com/studio2230704/technical-analysis-dashboard/internal/model"

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer; the window is resummed on every update.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(price float64) {
	s.buf[s.idx] = price
	s.idx = (s.idx + 1) % s.period
	s.count++
	if s.count < s.period {
		return
	}

	// Resum the full window on each bar. A rolling add/subtract never
	// recovers once a large value has passed through it.
	s.sum = 0
	for _, x := range s.buf {
		s.sum += x
	}
	s.current = s.sum / float64(s.period)
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// window returns the buffered prices. Order is irrelevant to callers.
func (s *SMA) window() []float64 { return s.buf }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// SMASeries returns SMA(w) for every index of closes. Index i is absent
// while i < w-1. A non-positive window yields an all-absent series.
func SMASeries(closes []float64, w int) model.Series {
	if w <= 0 {
		return model.NewSeries(len(closes))
	}
	return drive(NewSMA(w), closes)
}
