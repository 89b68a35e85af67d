package indicator

import "github.com/studio2230704/technical-analysis-dashboard/internal/model"

// SMMA is Wilder's smoothed moving average. It is seeded with the simple
// mean of the first period inputs, then each input x moves the average by
// (x - avg) / period. RSI smooths its gains and losses with it.
type SMMA struct {
	period int
	n      int
	avg    float64
}

// NewSMMA creates a new SMMA indicator with the given period.
func NewSMMA(period int) *SMMA {
	return &SMMA{period: period}
}

func (s *SMMA) Name() string { return "SMMA" }

func (s *SMMA) Update(x float64) {
	if s.n < s.period {
		s.n++
		// Running mean until the seed window is full.
		s.avg += (x - s.avg) / float64(s.n)
		return
	}
	s.avg += (x - s.avg) / float64(s.period)
}

func (s *SMMA) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.avg
}

func (s *SMMA) Ready() bool { return s.period > 0 && s.n >= s.period }

// Reset clears the SMMA state for reuse.
func (s *SMMA) Reset() {
	s.n = 0
	s.avg = 0
}

// SMMASeries returns the Wilder average of closes over period; the first
// period-1 values are absent.
func SMMASeries(closes []float64, period int) model.Series {
	return drive(NewSMMA(period), closes)
}
