// Package calendar decides which days the exchange trades on.
package calendar

import (
	"fmt"
	"time"
)

// JST is the fallback location when the zone database is unavailable.
var JST = time.FixedZone("JST", 9*3600)

// DefaultTimezone is the exchange zone used when none is configured.
const DefaultTimezone = "Asia/Tokyo"

// Calendar is a weekday calendar with a fixed holiday set.
type Calendar struct {
	loc      *time.Location
	holidays map[string]bool
}

// New builds a calendar for the named zone. An empty zone means
// DefaultTimezone; a nil holiday list means DefaultHolidays.
func New(timezone string, holidays []string) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		if timezone != DefaultTimezone {
			return nil, fmt.Errorf("calendar: load zone %q: %w", timezone, err)
		}
		loc = JST
	}
	if holidays == nil {
		holidays = DefaultHolidays()
	}
	set, err := parseHolidays(holidays, loc)
	if err != nil {
		return nil, err
	}
	return &Calendar{loc: loc, holidays: set}, nil
}

// Location returns the exchange time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// IsHoliday returns true if the date (in exchange time) is a listed holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays[dateKey(t.In(c.loc))]
}

// IsWeekday returns true if t is Mon–Fri in exchange time.
func (c *Calendar) IsWeekday(t time.Time) bool {
	wd := t.In(c.loc).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	return c.IsWeekday(t) && !c.IsHoliday(t)
}

// NextTradingDay returns midnight (exchange time) of the first trading day
// strictly after t.
func (c *Calendar) NextTradingDay(t time.Time) time.Time {
	local := t.In(c.loc)
	d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc).AddDate(0, 0, 1)
	for i := 0; i < 30; i++ { // long holiday runs stay well under a month
		if c.IsTradingDay(d) {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
	return d
}
