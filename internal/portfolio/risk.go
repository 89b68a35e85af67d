// Package portfolio sizes orders from a risk budget.
//
// Entry is the last close. The stop sits a buffer below the recent swing
// low, the share count spends at most the risk budget between entry and
// stop, and the take-profit is the same distance times the reward ratio
// above entry.
package portfolio

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

var (
	// ErrInvalidLimits is returned for out-of-range risk settings.
	ErrInvalidLimits = errors.New("invalid risk limits")
	// ErrNoPrice is returned when the series has no usable last close.
	ErrNoPrice = errors.New("no current price")
	// ErrInvalidStop is returned when the stop is not below the entry.
	ErrInvalidStop = errors.New("stop loss is not below entry")
)

var hundred = decimal.NewFromInt(100)

// RiskLimits configures order sizing. Percentages are 0-100.
type RiskLimits struct {
	TotalAssets       float64 `yaml:"total_assets" json:"total_assets" validate:"gte=0"`
	RiskPercent       float64 `yaml:"risk_percent" json:"risk_percent" validate:"gt=0,lte=100"`
	StopBufferPercent float64 `yaml:"stop_buffer_percent" json:"stop_buffer_percent" validate:"gte=0,lt=100"`
	RiskReward        float64 `yaml:"risk_reward" json:"risk_reward" validate:"gt=0"`
	LookbackDays      int     `yaml:"lookback_days" json:"lookback_days" validate:"gt=0"`

	// MaxExposurePercent caps the position value as a share of assets; 0 disables.
	MaxExposurePercent float64 `yaml:"max_exposure_percent" json:"max_exposure_percent" validate:"gte=0,lte=100"`
}

// DefaultRiskLimits returns 2% risk, a 5% stop buffer under the 20-day
// swing low and a 1:2 risk/reward target.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		RiskPercent:       2,
		StopBufferPercent: 5,
		RiskReward:        2,
		LookbackDays:      20,
	}
}

// Validate reports the first out-of-range setting. TotalAssets must be set.
func (l RiskLimits) Validate() error {
	switch {
	case l.TotalAssets <= 0:
		return fmt.Errorf("%w: total assets must be > 0, got %v", ErrInvalidLimits, l.TotalAssets)
	case l.RiskPercent <= 0 || l.RiskPercent > 100:
		return fmt.Errorf("%w: risk percent must be in (0,100], got %v", ErrInvalidLimits, l.RiskPercent)
	case l.StopBufferPercent < 0 || l.StopBufferPercent >= 100:
		return fmt.Errorf("%w: stop buffer must be in [0,100), got %v", ErrInvalidLimits, l.StopBufferPercent)
	case l.RiskReward <= 0:
		return fmt.Errorf("%w: risk/reward must be > 0, got %v", ErrInvalidLimits, l.RiskReward)
	case l.LookbackDays <= 0:
		return fmt.Errorf("%w: lookback must be > 0, got %d", ErrInvalidLimits, l.LookbackDays)
	case l.MaxExposurePercent < 0 || l.MaxExposurePercent > 100:
		return fmt.Errorf("%w: max exposure must be in [0,100], got %v", ErrInvalidLimits, l.MaxExposurePercent)
	}
	return nil
}

// OrderInfo is a sized market order with its exits.
type OrderInfo struct {
	Ticker string    `json:"ticker"`
	Name   string    `json:"name"`
	Date   time.Time `json:"date"`

	EntryPrice decimal.Decimal `json:"entry_price"`
	SwingLow   decimal.Decimal `json:"swing_low"`

	Shares        int64           `json:"shares"`
	PositionValue decimal.Decimal `json:"position_value"`
	// Capped is set when MaxExposurePercent reduced the share count.
	Capped bool `json:"capped"`

	StopLoss        decimal.Decimal `json:"stop_loss"`
	StopLossPct     decimal.Decimal `json:"stop_loss_pct"`
	TakeProfit      decimal.Decimal `json:"take_profit"`
	TakeProfitPct   decimal.Decimal `json:"take_profit_pct"`
	RiskAmount      decimal.Decimal `json:"risk_amount"`
	RewardAmount    decimal.Decimal `json:"reward_amount"`
	RiskRewardRatio decimal.Decimal `json:"risk_reward_ratio"`
}

// SwingLow returns the lowest low of the last lookback bars. Bars without a
// low fall back to their close.
func SwingLow(series model.PriceSeries, lookback int) (decimal.Decimal, error) {
	if series.Len() == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s has no bars", ErrNoPrice, series.Ticker)
	}
	start := series.Len() - lookback
	if start < 0 {
		start = 0
	}
	low := 0.0
	for i, b := range series.Bars[start:] {
		l := b.Low
		if l <= 0 {
			l = b.Close
		}
		if i == 0 || l < low {
			low = l
		}
	}
	return decimal.NewFromFloat(low), nil
}

// CalculateOrderInfo sizes a buy at the last close of series.
func CalculateOrderInfo(series model.PriceSeries, name string, limits RiskLimits) (*OrderInfo, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	last, ok := series.Last()
	if !ok || last.Close <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrice, series.Ticker)
	}
	if name == "" {
		name = series.Ticker
	}

	entry := decimal.NewFromFloat(last.Close)
	swing, err := SwingLow(series, limits.LookbackDays)
	if err != nil {
		return nil, err
	}
	buffer := decimal.NewFromFloat(limits.StopBufferPercent).Div(hundred)
	stop := swing.Mul(decimal.NewFromInt(1).Sub(buffer))

	riskPerShare := entry.Sub(stop)
	if !riskPerShare.IsPositive() {
		return nil, fmt.Errorf("%w: %s entry %s, stop %s", ErrInvalidStop, series.Ticker,
			entry.StringFixed(2), stop.StringFixed(2))
	}

	assets := decimal.NewFromFloat(limits.TotalAssets)
	rr := decimal.NewFromFloat(limits.RiskReward)
	riskBudget := assets.Mul(decimal.NewFromFloat(limits.RiskPercent)).Div(hundred)

	shares := riskBudget.Div(riskPerShare).Floor().IntPart()
	capped := false
	if limits.MaxExposurePercent > 0 {
		maxValue := assets.Mul(decimal.NewFromFloat(limits.MaxExposurePercent)).Div(hundred)
		if limit := maxValue.Div(entry).Floor().IntPart(); shares > limit {
			log.Printf("[risk] %s: %d shares capped to %d by max exposure %.1f%%",
				series.Ticker, shares, limit, limits.MaxExposurePercent)
			shares, capped = limit, true
		}
	}

	risk := riskBudget
	if capped {
		risk = riskPerShare.Mul(decimal.NewFromInt(shares))
	}
	profitPerShare := riskPerShare.Mul(rr)

	return &OrderInfo{
		Ticker:          series.Ticker,
		Name:            name,
		Date:            last.Date,
		EntryPrice:      entry,
		SwingLow:        swing,
		Shares:          shares,
		PositionValue:   entry.Mul(decimal.NewFromInt(shares)),
		Capped:          capped,
		StopLoss:        stop,
		StopLossPct:     riskPerShare.Div(entry).Mul(hundred),
		TakeProfit:      entry.Add(profitPerShare),
		TakeProfitPct:   profitPerShare.Div(entry).Mul(hundred),
		RiskAmount:      risk,
		RewardAmount:    risk.Mul(rr),
		RiskRewardRatio: rr,
	}, nil
}
