package engine

import (
	"sort"

	"github.com/minhvq/gapspike/internal/models"
)

// Read-only snapshot accessors. Each copies under the engine lock so
// consumers (UI, export, notification pollers) never observe a batch in
// flight.

// PercentResults returns a copy of the percent-mode result map.
func (e *Engine) PercentResults() map[string]models.DetectionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]models.DetectionResult, len(e.percentResults))
	for k, v := range e.percentResults {
		out[k] = v
	}
	return out
}

// PointResults returns a copy of the point-mode result map.
func (e *Engine) PointResults() map[string]models.DetectionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]models.DetectionResult, len(e.pointResults))
	for k, v := range e.pointResults {
		out[k] = v
	}
	return out
}

// AlertBoard returns a copy of the live alert board.
func (e *Engine) AlertBoard() map[string]models.AlertEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]models.AlertEntry, len(e.alerts))
	for k, v := range e.alerts {
		entry := *v
		if v.GraceStart != nil {
			t := *v.GraceStart
			entry.GraceStart = &t
		}
		out[k] = entry
	}
	return out
}

// FilteredInstruments returns a copy of the trade-mode filter registry.
func (e *Engine) FilteredInstruments() map[string]models.FilteredInstrument {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]models.FilteredInstrument, len(e.filtered))
	for k, v := range e.filtered {
		out[k] = v
	}
	return out
}

// DelayedInstruments lists instruments whose bid has not moved for at least
// the configured delay threshold, sorted by staleness descending.
func (e *Engine) DelayedInstruments() []models.DelayedInstrument {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var out []models.DelayedInstrument
	for key, entry := range e.bidTracking {
		staleFor := now.Sub(entry.LastChange)
		if staleFor < e.cfg.DelayAfter {
			continue
		}
		snap, ok := e.snapshots[key]
		if !ok {
			continue
		}
		out = append(out, models.DelayedInstrument{
			Venue:    snap.Venue,
			Symbol:   snap.Symbol,
			LastBid:  entry.LastBid,
			StaleFor: staleFor,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaleFor > out[j].StaleFor })
	return out
}
