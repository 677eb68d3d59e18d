package engine

import (
	"time"

	"github.com/minhvq/gapspike/internal/models"
)

// applyAlert advances the per-instrument alert state machine:
//
//	Absent -> Active   detected=true arrives; entry created
//	Active -> Active   detected=true refreshes the entry
//	Active -> Grace    detected=false starts the grace period
//	Grace  -> Active   detected=true before expiry clears it
//	Grace  -> Absent   grace period elapses without re-detection
//
// The grace window keeps one-tick flicker from churning the alert board.
// Returns true only on the Absent -> Active transition, which is the moment
// downstream notification and persistence care about.
func (e *Engine) applyAlert(key string, result models.DetectionResult, now time.Time) bool {
	entry, exists := e.alerts[key]

	if result.Detected {
		if !exists {
			e.alerts[key] = &models.AlertEntry{Result: result, LastDetected: now}
			return true
		}
		entry.Result = result
		entry.LastDetected = now
		entry.GraceStart = nil
		return false
	}

	if !exists {
		return false
	}
	if entry.GraceStart == nil {
		t := now
		entry.GraceStart = &t
		return false
	}
	if now.Sub(*entry.GraceStart) >= e.cfg.GracePeriod {
		delete(e.alerts, key)
	}
	return false
}
