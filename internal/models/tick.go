// Package models defines the core domain entities: ticks, candles,
// detection results, and alert-board entries.
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// TradeMode mirrors the broker-reported trading permission for a symbol.
type TradeMode string

const (
	TradeModeFull      TradeMode = "FULL"
	TradeModeLongOnly  TradeMode = "LONGONLY"
	TradeModeShortOnly TradeMode = "SHORTONLY"
	TradeModeCloseOnly TradeMode = "CLOSEONLY"
	TradeModeDisabled  TradeMode = "DISABLED"
	TradeModeUnknown   TradeMode = "UNKNOWN"
)

// ParseTradeMode maps a broker-reported mode string to a TradeMode.
// Unrecognized or empty values map to TradeModeUnknown.
func ParseTradeMode(s string) TradeMode {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FULL":
		return TradeModeFull
	case "LONGONLY":
		return TradeModeLongOnly
	case "SHORTONLY":
		return TradeModeShortOnly
	case "CLOSEONLY":
		return TradeModeCloseOnly
	case "DISABLED":
		return TradeModeDisabled
	default:
		return TradeModeUnknown
	}
}

// Tradable reports whether an instrument in this mode is eligible for
// detection. CLOSEONLY, DISABLED, and UNKNOWN instruments are filtered out.
func (m TradeMode) Tradable() bool {
	switch m {
	case TradeModeFull, TradeModeLongOnly, TradeModeShortOnly:
		return true
	}
	return false
}

// Candle holds one OHLC bar. Time is the bar's open time in unix seconds;
// transports that do not supply it default it to the batch timestamp.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// DayIndex returns the UTC day number of the bar's open time.
func (c Candle) DayIndex() int64 {
	return c.Time / 86400
}

// Session is one trading window expressed as "HH:MM" local broker time.
type Session struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySessions lists the trading windows of one weekday.
type DaySessions struct {
	Day      string    `json:"day"`
	Sessions []Session `json:"sessions"`
}

// SessionSchedule is the weekly trading calendar a broker reports per symbol.
type SessionSchedule struct {
	CurrentDay string        `json:"current_day"`
	Days       []DaySessions `json:"days"`
}

// OpenTime returns the first session start of the given weekday as minutes
// since midnight. ok is false when the day has no sessions or the start
// string is malformed.
func (s SessionSchedule) OpenTime(day string) (minutes int, ok bool) {
	for _, d := range s.Days {
		if !strings.EqualFold(d.Day, day) || len(d.Sessions) == 0 {
			continue
		}
		var hh, mm int
		if _, err := fmt.Sscanf(d.Sessions[0].Start, "%d:%d", &hh, &mm); err != nil {
			return 0, false
		}
		if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
			return 0, false
		}
		return hh*60 + mm, true
	}
	return 0, false
}

// InstrumentKey builds the canonical "venue_symbol" map key used by every
// per-instrument map in the engine.
func InstrumentKey(venue, symbol string) string {
	return venue + "_" + symbol
}

// TickSnapshot is the full per-instrument state delivered by one tick.
// The ingestion pipeline overwrites it wholesale; it is never partially
// mutated by multiple writers.
type TickSnapshot struct {
	Venue      string
	Symbol     string
	Timestamp  int64 // unix seconds
	Bid        float64
	Ask        float64
	PointValue float64
	Digits     int
	MarketOpen bool
	PrevCandle Candle
	CurrCandle Candle
	Sessions   SessionSchedule
	GroupPath  string
	TradeMode  TradeMode
}

// Key returns the instrument key for this snapshot.
func (t *TickSnapshot) Key() string {
	return InstrumentKey(t.Venue, t.Symbol)
}

// Validate checks the fields a tick must carry to be processed at all.
// A failing tick is skipped with a warning; the prior snapshot is retained.
func (t *TickSnapshot) Validate() error {
	if t.Symbol == "" {
		return errors.New("symbol must not be empty")
	}
	if t.Venue == "" {
		return errors.New("venue must not be empty")
	}
	for name, v := range map[string]float64{
		"bid": t.Bid, "ask": t.Ask, "point value": t.PointValue,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	if t.Bid < 0 || t.Ask < 0 {
		return errors.New("bid and ask must not be negative")
	}
	return nil
}

// BidTrackingEntry records when an instrument's bid last moved. LastChange
// only advances when the bid value differs from the stored one; the drift
// between LastChange and now is what the delay board measures.
type BidTrackingEntry struct {
	LastBid    float64
	LastChange time.Time
	FirstSeen  time.Time
}

// FilteredInstrument is one entry of the diagnostic registry of instruments
// excluded from detection by trade mode.
type FilteredInstrument struct {
	Venue     string    `json:"venue"`
	Symbol    string    `json:"symbol"`
	TradeMode TradeMode `json:"trade_mode"`
	Since     time.Time `json:"since"`
}

// DelayedInstrument is one entry of the delay board: an instrument whose bid
// has not changed for longer than the delay threshold.
type DelayedInstrument struct {
	Venue    string        `json:"venue"`
	Symbol   string        `json:"symbol"`
	LastBid  float64       `json:"last_bid"`
	StaleFor time.Duration `json:"stale_for"`
}
