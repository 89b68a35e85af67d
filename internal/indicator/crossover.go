package indicator

import (
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// CrossDetector watches two series one index at a time and reports when the
// fast one crosses the slow one.
//
// Golden cross: prevFast <= prevSlow and fast > slow.
// Dead cross:   prevFast >= prevSlow and fast < slow.
//
// An absent reading on either side clears the previous pair, so no event is
// reported across a gap.
type CrossDetector struct {
	prevFast float64
	prevSlow float64
	ready    bool
}

// Update feeds the readings at the next index.
func (d *CrossDetector) Update(fast, slow model.Value) (model.CrossKind, bool) {
	if !fast.Valid || !slow.Valid {
		d.ready = false
		return "", false
	}

	defer func() {
		d.prevFast = fast.V
		d.prevSlow = slow.V
		d.ready = true
	}()

	if !d.ready {
		return "", false
	}
	if d.prevFast <= d.prevSlow && fast.V > slow.V {
		return model.GoldenCross, true
	}
	if d.prevFast >= d.prevSlow && fast.V < slow.V {
		return model.DeadCross, true
	}
	return "", false
}

// Reset forgets the previous readings.
func (d *CrossDetector) Reset() { d.ready = false }

// DetectCrosses scans fast and slow in one pass and returns events in index
// order, at most one per index. dates supplies event dates when long enough.
func DetectCrosses(fast, slow model.Series, dates []time.Time, pair model.CrossPair) []model.CrossEvent {
	n := len(fast)
	if len(slow) < n {
		n = len(slow)
	}

	var (
		d      CrossDetector
		events []model.CrossEvent
	)
	for i := 0; i < n; i++ {
		kind, ok := d.Update(fast[i], slow[i])
		if !ok {
			continue
		}
		ev := model.CrossEvent{
			Kind:  kind,
			Index: i,
			Pair:  pair,
			Fast:  fast[i].V,
			Slow:  slow[i].V,
		}
		if i < len(dates) {
			ev.Date = dates[i]
		}
		events = append(events, ev)
	}
	return events
}
