package models

import (
	"fmt"
	"time"
)

// Direction of a detected move.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// Mode selects how thresholds are expressed for an instrument.
type Mode string

const (
	ModePercent Mode = "percent"
	ModePoint   Mode = "point"
)

// Reason is a structured outcome code. Display layers turn it into text;
// the engine never formats messages itself.
type Reason string

const (
	ReasonDetected          Reason = "detected"
	ReasonBelowThreshold    Reason = "below_threshold"
	ReasonSpreadDominates   Reason = "spread_dominates"
	ReasonAskAbovePrevClose Reason = "ask_above_prev_close"
	ReasonStaleCandle       Reason = "stale_candle_boundary"
	ReasonMissingCandle     Reason = "missing_candle_data"
	ReasonMarketClosed      Reason = "market_closed"
	ReasonSessionOpenWindow Reason = "session_open_window"
	ReasonNoPreviousBid     Reason = "no_previous_bid"
	ReasonNoThreshold       Reason = "no_point_threshold"
	ReasonSkipped           Reason = "skipped"
)

// Classification is the outcome of one classifier (gap or spike) for one
// instrument. Magnitude and Threshold share a unit determined by the result
// mode: percent of previous close, or points.
type Classification struct {
	Detected  bool      `json:"detected"`
	Direction Direction `json:"direction"`
	Magnitude float64   `json:"magnitude"`
	Threshold float64   `json:"threshold"`
	Reason    Reason    `json:"reason"`
}

// DetectionResult is the immutable per-instrument outcome of one batch.
type DetectionResult struct {
	Venue        string         `json:"venue"`
	Symbol       string         `json:"symbol"`
	Mode         Mode           `json:"mode"`
	Gap          Classification `json:"gap"`
	Spike        Classification `json:"spike"`
	Detected     bool           `json:"detected"`
	Canonical    string         `json:"canonical,omitempty"`
	MatchedAlias string         `json:"matched_alias,omitempty"`
	Bid          float64        `json:"bid"`
	Ask          float64        `json:"ask"`
	Timestamp    int64          `json:"timestamp"`
}

// Key returns the instrument key for this result.
func (r *DetectionResult) Key() string {
	return InstrumentKey(r.Venue, r.Symbol)
}

// Summary renders a short human-readable description for notification and
// diagnostic display. It lives outside the detection path: results carry
// reason codes, not pre-formatted text.
func (r *DetectionResult) Summary() string {
	unit := "%"
	if r.Mode == ModePoint {
		unit = " pts"
	}
	name := r.Symbol
	if r.MatchedAlias != "" {
		name = fmt.Sprintf("%s (%s)", r.Symbol, r.MatchedAlias)
	}
	switch {
	case r.Gap.Detected && r.Spike.Detected:
		return fmt.Sprintf("%s: gap %s %.3f%s, spike %s %.3f%s",
			name, r.Gap.Direction, r.Gap.Magnitude, unit, r.Spike.Direction, r.Spike.Magnitude, unit)
	case r.Gap.Detected:
		return fmt.Sprintf("%s: gap %s %.3f%s (threshold %.3f%s)",
			name, r.Gap.Direction, r.Gap.Magnitude, unit, r.Gap.Threshold, unit)
	case r.Spike.Detected:
		return fmt.Sprintf("%s: spike %s %.3f%s (threshold %.3f%s)",
			name, r.Spike.Direction, r.Spike.Magnitude, unit, r.Spike.Threshold, unit)
	default:
		return fmt.Sprintf("%s: no detection (gap %s, spike %s)", name, r.Gap.Reason, r.Spike.Reason)
	}
}

// AlertEntry is one row of the live alert board.
// GraceStart is nil while the alert is active; once a detected=false result
// arrives it is set, and the entry survives until the grace period elapses
// without re-detection.
type AlertEntry struct {
	Result       DetectionResult `json:"result"`
	LastDetected time.Time       `json:"last_detected"`
	GraceStart   *time.Time      `json:"grace_start,omitempty"`
}

// Active reports whether the entry is in the active state (no grace period
// running).
func (a *AlertEntry) Active() bool {
	return a.GraceStart == nil
}
