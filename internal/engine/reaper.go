package engine

import "time"

// reap runs after every batch, under the engine lock. Venues with no update
// for StaleAfter are dropped along with every instrument they carried; any
// detection, alert, or bid-tracking entry whose instrument no longer exists
// in live state is removed with them. O(total live instruments).
func (e *Engine) reap(now time.Time) {
	for venue, last := range e.venueLast {
		if now.Sub(last) <= e.cfg.StaleAfter {
			continue
		}
		delete(e.venueLast, venue)
		for key, snap := range e.snapshots {
			if snap.Venue == venue {
				delete(e.snapshots, key)
			}
		}
		for key, fi := range e.filtered {
			if fi.Venue == venue {
				delete(e.filtered, key)
			}
		}
	}

	for key := range e.percentResults {
		if _, live := e.snapshots[key]; !live {
			delete(e.percentResults, key)
		}
	}
	for key := range e.pointResults {
		if _, live := e.snapshots[key]; !live {
			delete(e.pointResults, key)
		}
	}
	for key := range e.alerts {
		if _, live := e.snapshots[key]; !live {
			delete(e.alerts, key)
		}
	}
	for key := range e.bidTracking {
		if _, live := e.snapshots[key]; !live {
			delete(e.bidTracking, key)
		}
	}
}
