// Package indicator provides technical indicator calculations over daily closes.
//
// Each indicator has a streaming form implementing Indicator, fed one close
// at a time, and a batch form (SMASeries, RSISeries, ...) that drives the
// streaming form over a full close history in a single forward pass and
// returns a model.Series aligned with the input.
package indicator

import "github.com/studio2230704/technical-analysis-dashboard/internal/model"

// Indicator is the interface for all streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "RSI").
	Name() string

	// Update feeds the next close price and recalculates.
	Update(price float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// current converts the indicator's state into an optional reading.
func current(ind Indicator) model.Value {
	if !ind.Ready() {
		return model.Value{}
	}
	return model.Some(ind.Value())
}

// drive feeds closes through ind and records its reading after each one.
func drive(ind Indicator, closes []float64) model.Series {
	out := model.NewSeries(len(closes))
	for i, c := range closes {
		ind.Update(c)
		out[i] = current(ind)
	}
	return out
}
