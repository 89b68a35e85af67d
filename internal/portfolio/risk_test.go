package portfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

var day0 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// swingSeries has an old low of 50 outside a 20-bar lookback, a swing low
// of 90 inside it, and a last close of 110.
func swingSeries() model.PriceSeries {
	s := model.PriceSeries{Ticker: "7203.T"}
	for i := 0; i < 25; i++ {
		bar := model.PriceBar{Date: day0.AddDate(0, 0, i), Close: 100, Low: 95}
		switch {
		case i < 5:
			bar.Low = 50
		case i == 10:
			bar.Low = 90
		case i == 24:
			bar.Close, bar.Low = 110, 105
		}
		s.Bars = append(s.Bars, bar)
	}
	return s
}

func limits() RiskLimits {
	l := DefaultRiskLimits()
	l.TotalAssets = 100000
	return l
}

func TestSwingLow_UsesLookback(t *testing.T) {
	low, err := SwingLow(swingSeries(), 20)
	require.NoError(t, err)
	assert.Equal(t, "90", low.String())

	low, err = SwingLow(swingSeries(), 100)
	require.NoError(t, err)
	assert.Equal(t, "50", low.String())

	_, err = SwingLow(model.PriceSeries{Ticker: "NONE"}, 20)
	assert.True(t, errors.Is(err, ErrNoPrice))
}

func TestSwingLow_FallsBackToClose(t *testing.T) {
	s := model.PriceSeries{Ticker: "CSV", Bars: []model.PriceBar{
		{Date: day0, Close: 12},
		{Date: day0.AddDate(0, 0, 1), Close: 10},
	}}
	low, err := SwingLow(s, 20)
	require.NoError(t, err)
	assert.Equal(t, "10", low.String())
}

func TestCalculateOrderInfo(t *testing.T) {
	o, err := CalculateOrderInfo(swingSeries(), "Toyota", limits())
	require.NoError(t, err)

	assert.Equal(t, "Toyota", o.Name)
	assert.Equal(t, day0.AddDate(0, 0, 24), o.Date)
	assert.Equal(t, "110", o.EntryPrice.String())
	// stop = 90 * 0.95, risk per share 24.5, budget 2% of 100000
	assert.Equal(t, "85.5", o.StopLoss.String())
	assert.Equal(t, int64(81), o.Shares)
	assert.Equal(t, "8910", o.PositionValue.String())
	assert.False(t, o.Capped)
	assert.Equal(t, "159", o.TakeProfit.String())
	assert.Equal(t, "22.27", o.StopLossPct.StringFixed(2))
	assert.Equal(t, "44.55", o.TakeProfitPct.StringFixed(2))
	assert.Equal(t, "2000", o.RiskAmount.String())
	assert.Equal(t, "4000", o.RewardAmount.String())
	assert.Equal(t, "2", o.RiskRewardRatio.String())
}

func TestCalculateOrderInfo_ExposureCap(t *testing.T) {
	l := limits()
	l.MaxExposurePercent = 5
	o, err := CalculateOrderInfo(swingSeries(), "", l)
	require.NoError(t, err)

	assert.Equal(t, "7203.T", o.Name)
	assert.True(t, o.Capped)
	assert.Equal(t, int64(45), o.Shares)
	assert.Equal(t, "1102.5", o.RiskAmount.String())
	assert.Equal(t, "2205", o.RewardAmount.String())
}

func TestCalculateOrderInfo_Errors(t *testing.T) {
	l := limits()
	l.TotalAssets = 0
	_, err := CalculateOrderInfo(swingSeries(), "", l)
	assert.True(t, errors.Is(err, ErrInvalidLimits))

	l = limits()
	l.RiskReward = 0
	_, err = CalculateOrderInfo(swingSeries(), "", l)
	assert.True(t, errors.Is(err, ErrInvalidLimits))

	_, err = CalculateOrderInfo(model.PriceSeries{Ticker: "NONE"}, "", limits())
	assert.True(t, errors.Is(err, ErrNoPrice))

	flat := model.PriceSeries{Ticker: "FLAT"}
	for i := 0; i < 5; i++ {
		flat.Bars = append(flat.Bars, model.PriceBar{Date: day0.AddDate(0, 0, i), Close: 100, Low: 100})
	}
	l = limits()
	l.StopBufferPercent = 0
	_, err = CalculateOrderInfo(flat, "", l)
	assert.True(t, errors.Is(err, ErrInvalidStop))
}
