package gateway

import (
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
	"github.com/studio2230704/technical-analysis-dashboard/internal/signal"
	"github.com/studio2230704/technical-analysis-dashboard/internal/watchlist"
)

// IndicatorsResponse is the REST response type for /api/indicators.
type IndicatorsResponse struct {
	Ticker     string                 `json:"ticker"`
	Period     string                 `json:"period"`
	Interval   string                 `json:"interval"`
	Indicators *model.IndicatorBundle `json:"indicators"`
}

// SignalsResponse is the REST response type for /api/signals.
type SignalsResponse struct {
	Ticker   string          `json:"ticker"`
	Period   string          `json:"period"`
	Lookback int             `json:"lookback"`
	Close    float64         `json:"close"`
	RSI      model.Value     `json:"rsi"`
	Signals  []signal.Signal `json:"signals"`
}

// WatchlistRequest is the POST body for /api/watchlist. Omitted thresholds
// take the entry defaults.
type WatchlistRequest struct {
	Ticker        string   `json:"ticker"`
	Name          string   `json:"name"`
	RSIOversold   *float64 `json:"rsi_oversold"`
	RSIOverbought *float64 `json:"rsi_overbought"`
	CrossEnabled  *bool    `json:"cross_enabled"`
}

// Entry converts the request into a watchlist entry.
func (r WatchlistRequest) Entry() watchlist.Entry {
	e := watchlist.NewEntry(r.Ticker)
	e.Name = r.Name
	if r.RSIOversold != nil {
		e.RSIOversold = *r.RSIOversold
	}
	if r.RSIOverbought != nil {
		e.RSIOverbought = *r.RSIOverbought
	}
	if r.CrossEnabled != nil {
		e.CrossEnabled = *r.CrossEnabled
	}
	return e
}

// WatchlistEvent is pushed on the watchlist channel after a change.
type WatchlistEvent struct {
	Action string `json:"action"` // added | removed
	Ticker string `json:"ticker"`
	Size   int    `json:"size"`
}

// AlertsResponse is the REST response type for /api/alerts.
type AlertsResponse struct {
	Alerts []model.Alert `json:"alerts"`
	Seq    int64         `json:"seq"`
}

// ErrorMsg is the error body for REST and WS control replies.
type ErrorMsg struct {
	Type  string `json:"type,omitempty"`
	Error string `json:"error"`
}
