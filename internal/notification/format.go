package notification

import (
	"fmt"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
	"github.com/studio2230704/technical-analysis-dashboard/internal/portfolio"
)

// Emoji returns the marker used for an alert type.
func Emoji(t model.AlertType) string {
	switch t {
	case model.AlertGoldenCross:
		return "🟢"
	case model.AlertDeadCross, model.AlertRSIOverbought:
		return "🔴"
	case model.AlertRSIOversold:
		return "🔵"
	}
	return "ℹ️"
}

// Title is a one-line summary, e.g. "🟢 golden_cross 7203.T @ 2,512.50".
func Title(a model.Alert) string {
	return fmt.Sprintf("%s %s %s @ %s", Emoji(a.Type), a.Type, a.Ticker, formatPrice(a.Price))
}

// Text is the full notification body: the title, then the alert message.
func Text(a model.Alert) string {
	if a.Message == "" {
		return Title(a)
	}
	return Title(a) + "\n\n" + a.Message
}

// OrderText is the compact order summary sent alongside a buy alert.
func OrderText(o portfolio.OrderInfo) string {
	capped := ""
	if o.Capped {
		capped = ", capped"
	}
	return fmt.Sprintf("📊 Order: %s (%s)\n\n"+
		"💰 Entry: %s\n"+
		"📦 Position: %d shares (%s%s)\n"+
		"🛑 SL: %s (-%s%%)\n"+
		"🎯 TP: %s (+%s%%)\n"+
		"⚖️ R:R = 1:%s",
		o.Name, o.Ticker,
		formatPrice(o.EntryPrice.InexactFloat64()),
		o.Shares, formatPrice(o.PositionValue.InexactFloat64()), capped,
		formatPrice(o.StopLoss.InexactFloat64()), o.StopLossPct.StringFixed(1),
		formatPrice(o.TakeProfit.InexactFloat64()), o.TakeProfitPct.StringFixed(1),
		o.RiskRewardRatio.StringFixed(1))
}

// formatPrice renders p with thousands separators and two decimals.
func formatPrice(p float64) string {
	s := fmt.Sprintf("%.2f", p)
	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	if neg {
		return "-" + string(out) + frac
	}
	return string(out) + frac
}
