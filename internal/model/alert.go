package model

import (
	"time"

	json "github.com/goccy/go-json"
)

// AlertType identifies the condition that raised an alert.
type AlertType string

const (
	AlertGoldenCross   AlertType = "golden_cross"
	AlertDeadCross     AlertType = "dead_cross"
	AlertRSIOversold   AlertType = "rsi_oversold"
	AlertRSIOverbought AlertType = "rsi_overbought"
)

// Alert is a condition detected on the latest bar of a watched ticker.
type Alert struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name,omitempty"`
	Type      AlertType `json:"type"`
	Price     float64   `json:"price"`
	RSI       Value     `json:"rsi"`
	Date      time.Time `json:"date"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// JSON returns the JSON-encoded alert.
func (a *Alert) JSON() []byte {
	b, _ := json.Marshal(a)
	return b
}
