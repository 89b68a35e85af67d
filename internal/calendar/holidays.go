package calendar

import (
	"fmt"
	"time"
)

// TSE holidays for 2026.
// Source: JPX market holiday calendar.
var tseHolidays2026 = []string{
	"2026-01-01", // New Year
	"2026-01-02", // Market holiday
	"2026-01-12", // Coming of Age Day
	"2026-02-11", // National Foundation Day
	"2026-02-23", // Emperor's Birthday
	"2026-03-20", // Vernal Equinox Day
	"2026-04-29", // Showa Day
	"2026-05-04", // Greenery Day
	"2026-05-05", // Children's Day
	"2026-05-06", // Substitute holiday
	"2026-07-20", // Marine Day
	"2026-08-11", // Mountain Day
	"2026-09-21", // Respect for the Aged Day
	"2026-09-22", // National holiday
	"2026-09-23", // Autumnal Equinox Day
	"2026-10-12", // Sports Day
	"2026-11-03", // Culture Day
	"2026-11-23", // Labour Thanksgiving Day
	"2026-12-31", // Market holiday
}

// DefaultHolidays returns a copy of the built-in holiday list.
func DefaultHolidays() []string {
	out := make([]string, len(tseHolidays2026))
	copy(out, tseHolidays2026)
	return out
}

// parseHolidays converts YYYY-MM-DD strings to a lookup set.
func parseHolidays(days []string, loc *time.Location) (map[string]bool, error) {
	set := make(map[string]bool, len(days))
	for _, d := range days {
		t, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			return nil, fmt.Errorf("calendar: bad holiday %q: %w", d, err)
		}
		set[dateKey(t)] = true
	}
	return set, nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
