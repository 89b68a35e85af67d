package indicator

import "github.com/studio2230704/technical-analysis-dashboard/internal/model"

// EMA calculates Exponential Moving Average.
// Seeded with the simple mean of the first period inputs, then
// EMA = price*α + EMA_prev*(1-α) with α = 2/(period+1).
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

// EMASeries returns EMA(p) for every index of closes; absent while i < p-1.
func EMASeries(closes []float64, p int) model.Series {
	if p <= 0 {
		return model.NewSeries(len(closes))
	}
	return drive(NewEMA(p), closes)
}
