package engine

import (
	"math"

	"github.com/minhvq/gapspike/internal/models"
)

// classifySpikePercent computes the percent-mode spike outcome: the largest
// intra-candle excursion of the current bar away from the previous close,
// checked in both directions. When neither side clears the bar, the larger
// raw magnitude is still reported for diagnostic display.
func classifySpikePercent(snap *models.TickSnapshot, threshold, spreadPercent float64) models.Classification {
	prevClose := snap.PrevCandle.Close
	if prevClose == 0 || (snap.CurrCandle.High == 0 && snap.CurrCandle.Low == 0) {
		return models.Classification{Direction: models.DirectionNone, Threshold: threshold, Reason: models.ReasonMissingCandle}
	}

	spikeUp := (snap.CurrCandle.High - prevClose) / prevClose * 100
	spikeDown := (prevClose - snap.CurrCandle.Low) / prevClose * 100
	upMag := math.Abs(spikeUp)
	downMag := math.Abs(spikeDown)

	upValid := upMag >= threshold && upMag > spreadPercent
	downValid := downMag >= threshold && snap.Ask < prevClose && downMag > spreadPercent

	c := models.Classification{Threshold: threshold}
	switch {
	case upValid && downValid:
		if upMag >= downMag {
			c.Detected, c.Direction, c.Magnitude = true, models.DirectionUp, upMag
		} else {
			c.Detected, c.Direction, c.Magnitude = true, models.DirectionDown, downMag
		}
		c.Reason = models.ReasonDetected
	case upValid:
		c.Detected, c.Direction, c.Magnitude = true, models.DirectionUp, upMag
		c.Reason = models.ReasonDetected
	case downValid:
		c.Detected, c.Direction, c.Magnitude = true, models.DirectionDown, downMag
		c.Reason = models.ReasonDetected
	default:
		// Report the larger side anyway so the board can show how close
		// the instrument came.
		if upMag >= downMag {
			c.Direction, c.Magnitude = models.DirectionUp, upMag
		} else {
			c.Direction, c.Magnitude = models.DirectionDown, downMag
		}
		switch {
		case c.Magnitude < threshold:
			c.Reason = models.ReasonBelowThreshold
		case c.Direction == models.DirectionDown && snap.Ask >= prevClose:
			c.Reason = models.ReasonAskAbovePrevClose
		default:
			c.Reason = models.ReasonSpreadDominates
		}
	}
	return c
}

// classifySpikePoint computes the point-mode spike outcome: the move of the
// current bid away from the previously recorded bid, in points. Point mode
// is single-direction; it requires a prior bid observation.
func classifySpikePoint(snap *models.TickSnapshot, prevBid float64, hasPrevBid bool, thresholdPoint, spreadPoint float64) models.Classification {
	if !hasPrevBid {
		return models.Classification{Direction: models.DirectionNone, Threshold: thresholdPoint, Reason: models.ReasonNoPreviousBid}
	}
	if snap.PointValue <= 0 {
		return models.Classification{Direction: models.DirectionNone, Threshold: thresholdPoint, Reason: models.ReasonMissingCandle}
	}

	diff := snap.Bid - prevBid
	magnitude := math.Abs(diff) / snap.PointValue

	c := models.Classification{
		Direction: signDirection(diff),
		Magnitude: magnitude,
		Threshold: thresholdPoint,
	}
	switch {
	case magnitude < thresholdPoint:
		c.Reason = models.ReasonBelowThreshold
	case magnitude <= spreadPoint:
		c.Reason = models.ReasonSpreadDominates
	default:
		c.Detected = true
		c.Reason = models.ReasonDetected
	}
	return c
}
