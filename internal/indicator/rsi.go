package indicator

import "github.com/studio2230704/technical-analysis-dashboard/internal/model"

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Gains and losses are each smoothed by an SMMA, so the first reading is
// available after period+1 closes. Update is O(1) per close.
type RSI struct {
	period    int
	count     int
	prevClose float64
	gains     *SMMA
	losses    *SMMA
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  NewSMMA(period),
		losses: NewSMMA(period),
	}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First close: no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.gains.Update(gain)
	r.losses.Update(loss)

	if r.losses.Ready() {
		r.current = rsiFromAverages(r.gains.Value(), r.losses.Value())
	}
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

// Reset clears the RSI state for reuse.
func (r *RSI) Reset() {
	r.count = 0
	r.prevClose = 0
	r.current = 0
	r.gains.Reset()
	r.losses.Reset()
}

// rsiFromAverages maps smoothed gain and loss to [0, 100].
// A flat window reads 50; a window with no losses reads 100.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSISeries returns RSI(n) for every index of closes; absent while i < n.
func RSISeries(closes []float64, n int) model.Series {
	if n <= 0 {
		return model.NewSeries(len(closes))
	}
	return drive(NewRSI(n), closes)
}
