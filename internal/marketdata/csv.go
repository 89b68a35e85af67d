package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

var csvColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ReadCSV parses Date,Open,High,Low,Close,Volume rows into a series.
// The header is required; column order follows the header. Dates are
// 2006-01-02 or RFC3339. Rows are returned in file order and not validated.
func ReadCSV(r io.Reader, ticker string) (model.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"date", "close"} {
		if _, ok := idx[col]; !ok {
			return model.PriceSeries{}, fmt.Errorf("csv: missing %q column", col)
		}
	}

	s := model.PriceSeries{Ticker: ticker}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.PriceSeries{}, fmt.Errorf("csv line %d: %w", line, err)
		}

		bar, err := parseRow(rec, idx)
		if err != nil {
			return model.PriceSeries{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		s.Bars = append(s.Bars, bar)
	}
	return s, nil
}

func parseRow(rec []string, idx map[string]int) (model.PriceBar, error) {
	var bar model.PriceBar
	for _, col := range csvColumns {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			continue
		}
		raw := strings.TrimSpace(rec[i])
		switch col {
		case "date":
			t, err := parseDate(raw)
			if err != nil {
				return bar, err
			}
			bar.Date = t
		case "volume":
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return bar, fmt.Errorf("bad volume %q", raw)
			}
			bar.Volume = int64(v)
		default:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return bar, fmt.Errorf("bad %s %q", col, raw)
			}
			switch col {
			case "open":
				bar.Open = v
			case "high":
				bar.High = v
			case "low":
				bar.Low = v
			case "close":
				bar.Close = v
			}
		}
	}
	return bar, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", s)
	}
	return dateOf(t), nil
}

// WriteCSV writes s in the format ReadCSV accepts.
func WriteCSV(w io.Writer, s model.PriceSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range s.Bars {
		rec := []string{b.Date.Format("2006-01-02"), f(b.Open), f(b.High), f(b.Low), f(b.Close), strconv.FormatInt(b.Volume, 10)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
