package watchlist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LoadCSV imports a legacy watchlist: a CSV with a "ticker" header column.
// Imported tickers get default thresholds; existing entries are kept as is.
// It returns the number of tickers added.
func (m *Manager) LoadCSV(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("watchlist: read csv header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "ticker") {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, errors.New("watchlist: csv has no ticker column")
	}

	added := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return added, fmt.Errorf("watchlist: read csv: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		t := normalize(rec[col])
		if t == "" || m.Contains(t) {
			continue
		}
		if err := m.Add(NewEntry(t)); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
