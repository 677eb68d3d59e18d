package engine

import (
	"math"

	"github.com/minhvq/gapspike/internal/models"
)

// classifyGapPercent computes the percent-mode gap outcome for one snapshot.
// Pure function: no engine state is touched.
//
// A gap is the discontinuity between the previous bar's close and the
// current bar's open. Both bars and "today" must share a day index, else
// the candle data straddles a boundary and the result is not trustworthy.
func classifyGapPercent(snap *models.TickSnapshot, threshold, spreadPercent float64) models.Classification {
	prevClose := snap.PrevCandle.Close
	open := snap.CurrCandle.Open
	if prevClose == 0 || open == 0 {
		return models.Classification{Direction: models.DirectionNone, Threshold: threshold, Reason: models.ReasonMissingCandle}
	}

	today := snap.Timestamp / 86400
	if snap.PrevCandle.DayIndex() != today || snap.CurrCandle.DayIndex() != today {
		return models.Classification{Direction: models.DirectionNone, Threshold: threshold, Reason: models.ReasonStaleCandle}
	}

	gapPercent := (open - prevClose) / prevClose * 100
	magnitude := math.Abs(gapPercent)
	direction := signDirection(gapPercent)

	c := models.Classification{
		Direction: direction,
		Magnitude: magnitude,
		Threshold: threshold,
	}
	switch {
	case magnitude < threshold:
		c.Reason = models.ReasonBelowThreshold
	case magnitude <= spreadPercent:
		c.Reason = models.ReasonSpreadDominates
	case direction == models.DirectionDown && snap.Ask >= prevClose:
		c.Reason = models.ReasonAskAbovePrevClose
	default:
		c.Detected = true
		c.Reason = models.ReasonDetected
	}
	return c
}

// classifyGapPoint mirrors classifyGapPercent with magnitudes expressed in
// points instead of percent of previous close.
func classifyGapPoint(snap *models.TickSnapshot, thresholdPoint, spreadPoint float64) models.Classification {
	prevClose := snap.PrevCandle.Close
	open := snap.CurrCandle.Open
	if prevClose == 0 || open == 0 || snap.PointValue <= 0 {
		return models.Classification{Direction: models.DirectionNone, Threshold: thresholdPoint, Reason: models.ReasonMissingCandle}
	}

	today := snap.Timestamp / 86400
	if snap.PrevCandle.DayIndex() != today || snap.CurrCandle.DayIndex() != today {
		return models.Classification{Direction: models.DirectionNone, Threshold: thresholdPoint, Reason: models.ReasonStaleCandle}
	}

	diff := open - prevClose
	magnitude := math.Abs(diff) / snap.PointValue
	direction := signDirection(diff)

	c := models.Classification{
		Direction: direction,
		Magnitude: magnitude,
		Threshold: thresholdPoint,
	}
	switch {
	case magnitude < thresholdPoint:
		c.Reason = models.ReasonBelowThreshold
	case magnitude <= spreadPoint:
		c.Reason = models.ReasonSpreadDominates
	case direction == models.DirectionDown && snap.Ask >= prevClose:
		c.Reason = models.ReasonAskAbovePrevClose
	default:
		c.Detected = true
		c.Reason = models.ReasonDetected
	}
	return c
}

func signDirection(v float64) models.Direction {
	switch {
	case v > 0:
		return models.DirectionUp
	case v < 0:
		return models.DirectionDown
	default:
		return models.DirectionNone
	}
}
