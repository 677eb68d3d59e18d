// Package engine implements the gap/spike detection core: threshold
// resolution, classification, the alert lifecycle, and the per-batch
// ingestion pipeline. All mutable state lives in one Engine instance and
// is guarded by a single mutex; batches are processed atomically with
// respect to each other and to readers.
package engine

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/minhvq/gapspike/internal/models"
	"github.com/minhvq/gapspike/internal/symbols"
)

// Config holds the engine's detection behavior.
type Config struct {
	GapPercentDefault   float64
	SpikePercentDefault float64
	GracePeriod         time.Duration
	StaleAfter          time.Duration
	DelayAfter          time.Duration
	RequireMarketOpen   bool
	IgnoreAfterOpen     time.Duration
	FilterEnabled       bool
	FilterSelection     map[string][]string // venue -> allowed symbols
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		GapPercentDefault:   0.3,
		SpikePercentDefault: 1.3,
		GracePeriod:         15 * time.Second,
		StaleAfter:          30 * time.Second,
		DelayAfter:          180 * time.Second,
	}
}

// Warning reports a per-record ingestion problem. The batch continues; the
// instrument's prior snapshot, if any, is retained.
type Warning struct {
	Symbol string
	Err    error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Symbol, w.Err)
}

// Engine owns all detection state. Construct with New; zero value is not
// usable.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	resolver   *symbols.Resolver
	thresholds *thresholdResolver
	now        func() time.Time

	snapshots      map[string]*models.TickSnapshot
	venueLast      map[string]time.Time
	percentResults map[string]models.DetectionResult
	pointResults   map[string]models.DetectionResult
	alerts         map[string]*models.AlertEntry
	bidTracking    map[string]*models.BidTrackingEntry
	filtered       map[string]models.FilteredInstrument
}

// New builds an engine over the canonical symbol set and threshold
// overrides. Multiple independent engines may coexist; nothing is
// process-global.
func New(cfg Config, canonical []models.CanonicalConfig, overrides map[string]models.ThresholdOverride) *Engine {
	e := &Engine{
		cfg:            cfg,
		now:            time.Now,
		snapshots:      make(map[string]*models.TickSnapshot),
		venueLast:      make(map[string]time.Time),
		percentResults: make(map[string]models.DetectionResult),
		pointResults:   make(map[string]models.DetectionResult),
		alerts:         make(map[string]*models.AlertEntry),
		bidTracking:    make(map[string]*models.BidTrackingEntry),
		filtered:       make(map[string]models.FilteredInstrument),
	}
	// Configuration loaders lower-case map keys; venue matching against the
	// allow-list is case-insensitive to match.
	if len(cfg.FilterSelection) > 0 {
		sel := make(map[string][]string, len(cfg.FilterSelection))
		for venue, syms := range cfg.FilterSelection {
			sel[strings.ToLower(venue)] = syms
		}
		e.cfg.FilterSelection = sel
	}
	e.resolver = symbols.NewResolver(canonical)
	e.thresholds = newThresholdResolver(overrides, cfg.GapPercentDefault, cfg.SpikePercentDefault, func() time.Time { return e.now() })
	return e
}

// IngestBatch processes one batch of ticks from a single venue. Ticks are
// handled in arrival order; the whole batch runs under the engine lock.
// After the batch the staleness reaper sweeps dead venues and orphans.
func (e *Engine) IngestBatch(venue string, batchTime int64, ticks []models.TickSnapshot) []Warning {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.venueLast[venue] = now

	var warnings []Warning
	for i := range ticks {
		tick := ticks[i]
		tick.Venue = venue
		if tick.Timestamp == 0 {
			tick.Timestamp = batchTime
		}
		if err := tick.Validate(); err != nil {
			warnings = append(warnings, Warning{Symbol: tick.Symbol, Err: err})
			continue
		}
		e.processTick(&tick, now)
	}

	e.reap(now)
	return warnings
}

func (e *Engine) processTick(tick *models.TickSnapshot, now time.Time) {
	key := tick.Key()

	// Step 1: trade-mode filter. Excluded instruments are recorded for
	// diagnostics and all their state is purged, candle state included.
	if !tick.TradeMode.Tradable() {
		if _, ok := e.filtered[key]; !ok {
			e.filtered[key] = models.FilteredInstrument{
				Venue: tick.Venue, Symbol: tick.Symbol, TradeMode: tick.TradeMode, Since: now,
			}
		}
		e.purgeDetection(key)
		delete(e.bidTracking, key)
		delete(e.snapshots, key)
		return
	}

	// Step 2: the instrument is live again; overwrite its snapshot.
	delete(e.filtered, key)
	e.snapshots[key] = tick

	// Step 3: allow-list filter.
	if e.cfg.FilterEnabled && !e.symbolAllowed(tick.Venue, tick.Symbol) {
		e.purgeDetection(key)
		delete(e.bidTracking, key)
		return
	}

	// Step 4: bid-change tracking. The previous bid is captured first:
	// point-mode spikes measure against it, not against the updated entry.
	prevBid, hasPrevBid := 0.0, false
	if entry, ok := e.bidTracking[key]; ok {
		prevBid, hasPrevBid = entry.LastBid, true
		if tick.Bid != entry.LastBid {
			entry.LastBid = tick.Bid
			entry.LastChange = now
		}
	} else {
		e.bidTracking[key] = &models.BidTrackingEntry{
			LastBid: tick.Bid, LastChange: now, FirstSeen: now,
		}
	}

	// Step 5: point-vs-percent mode resolution.
	ov, _ := e.thresholds.override(tick.Venue, tick.Symbol)
	res := e.resolver.Resolve(tick.Symbol)
	pointMode := ov.HasPoint() || (res.Found && !ov.HasPercent())

	mode := models.ModePercent
	if pointMode {
		mode = models.ModePoint
	}

	// Step 6: market-open policy and session-open ignore window.
	if reason, skip := e.skipReason(tick, now); skip {
		e.storeResult(key, skippedResult(tick, mode, res, reason), now)
		return
	}

	// Step 7: spreads, computed once for both classifiers.
	spread := math.Abs(tick.Ask - tick.Bid)
	spreadPercent := 0.0
	if tick.Bid > 0 {
		spreadPercent = spread / tick.Bid * 100
	}
	spreadPoint := 0.0
	if tick.PointValue > 0 {
		spreadPoint = spread / tick.PointValue
	}

	// Step 8: classification dispatch.
	var result models.DetectionResult
	if pointMode {
		gapThr, gapOK := e.pointThreshold(ov.GapPoint, res, tick.PointValue)
		spikeThr, spikeOK := e.pointThreshold(ov.SpikePoint, res, tick.PointValue)
		gap := models.Classification{Direction: models.DirectionNone, Reason: models.ReasonNoThreshold}
		if gapOK {
			gap = classifyGapPoint(tick, gapThr, spreadPoint)
		}
		spike := models.Classification{Direction: models.DirectionNone, Reason: models.ReasonNoThreshold}
		if spikeOK {
			spike = classifySpikePoint(tick, prevBid, hasPrevBid, spikeThr, spreadPoint)
		}
		result = models.DetectionResult{
			Venue:        tick.Venue,
			Symbol:       tick.Symbol,
			Mode:         models.ModePoint,
			Gap:          gap,
			Spike:        spike,
			Canonical:    res.Canonical,
			MatchedAlias: res.MatchedAlias,
			Bid:          tick.Bid,
			Ask:          tick.Ask,
			Timestamp:    tick.Timestamp,
		}
	} else {
		gapThr := e.thresholds.resolve(tick.Venue, tick.Symbol, kindGapPercent)
		spikeThr := e.thresholds.resolve(tick.Venue, tick.Symbol, kindSpikePercent)
		result = models.DetectionResult{
			Venue:     tick.Venue,
			Symbol:    tick.Symbol,
			Mode:      models.ModePercent,
			Gap:       classifyGapPercent(tick, gapThr, spreadPercent),
			Spike:     classifySpikePercent(tick, spikeThr, spreadPercent),
			Bid:       tick.Bid,
			Ask:       tick.Ask,
			Timestamp: tick.Timestamp,
		}
	}
	result.Detected = result.Gap.Detected || result.Spike.Detected

	e.storeResult(key, result, now)
}

// pointThreshold picks the explicit point override when present, then the
// canonical point-based scale, and last derives a threshold from the
// canonical default percent and the point value. The second return is false
// when none of the sources yields a usable threshold; callers must not
// classify that side.
func (e *Engine) pointThreshold(override *float64, res symbols.Resolution, pointValue float64) (float64, bool) {
	if override != nil {
		return *override, true
	}
	if res.Found {
		if res.Config.CustomGapScale > 0 {
			return res.Config.CustomGapScale, true
		}
		if pointValue > 0 && res.Config.DefaultGapPercent > 0 {
			return res.Config.DefaultGapPercent / pointValue, true
		}
	}
	return 0, false
}

// skipReason applies the "only classify while open" policy and the
// session-open ignore window.
func (e *Engine) skipReason(tick *models.TickSnapshot, now time.Time) (models.Reason, bool) {
	if e.cfg.RequireMarketOpen && !tick.MarketOpen {
		return models.ReasonMarketClosed, true
	}
	if e.cfg.IgnoreAfterOpen > 0 {
		if openMin, ok := tick.Sessions.OpenTime(tick.Sessions.CurrentDay); ok {
			minOfDay := int(tick.Timestamp % 86400 / 60)
			ignoreMin := int(e.cfg.IgnoreAfterOpen / time.Minute)
			if minOfDay >= openMin && minOfDay < openMin+ignoreMin {
				return models.ReasonSessionOpenWindow, true
			}
		}
	}
	return "", false
}

// skippedResult records a detected=false outcome so downstream state stays
// fresh even when classification is suppressed.
func skippedResult(tick *models.TickSnapshot, mode models.Mode, res symbols.Resolution, reason models.Reason) models.DetectionResult {
	c := models.Classification{Direction: models.DirectionNone, Reason: reason}
	r := models.DetectionResult{
		Venue:     tick.Venue,
		Symbol:    tick.Symbol,
		Mode:      mode,
		Gap:       c,
		Spike:     c,
		Bid:       tick.Bid,
		Ask:       tick.Ask,
		Timestamp: tick.Timestamp,
	}
	if mode == models.ModePoint {
		r.Canonical = res.Canonical
		r.MatchedAlias = res.MatchedAlias
	}
	return r
}

// storeResult files the result in the map matching its mode, drops any
// stale entry in the other map, and advances the alert lifecycle.
func (e *Engine) storeResult(key string, result models.DetectionResult, now time.Time) {
	if result.Mode == models.ModePoint {
		e.pointResults[key] = result
		delete(e.percentResults, key)
	} else {
		e.percentResults[key] = result
		delete(e.pointResults, key)
	}
	e.applyAlert(key, result, now)
}

func (e *Engine) purgeDetection(key string) {
	delete(e.percentResults, key)
	delete(e.pointResults, key)
	delete(e.alerts, key)
}

// symbolAllowed implements the instrument allow-list: exact match against
// the venue's configured list, or a normalized-prefix match against the
// known canonical aliases so venue suffix spellings pass. A venue listed
// with an empty selection rejects every symbol.
func (e *Engine) symbolAllowed(venue, symbol string) bool {
	selection, ok := e.cfg.FilterSelection[strings.ToLower(venue)]
	if !ok {
		return true
	}
	if len(selection) == 0 {
		return false
	}
	for _, s := range selection {
		if s == symbol {
			return true
		}
	}
	return e.resolver.HasAliasPrefix(symbol)
}

// Reload replaces the canonical symbol set, invalidating the resolution
// and threshold caches wholesale under the engine lock. An empty set is
// rejected and the previous configuration stays intact.
func (e *Engine) Reload(canonical []models.CanonicalConfig) error {
	if len(canonical) == 0 {
		return fmt.Errorf("refusing to reload an empty canonical symbol set")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver.Reload(canonical)
	e.thresholds.clear()
	return nil
}

// SetOverrides replaces the threshold override set after a bulk edit and
// clears the threshold cache.
func (e *Engine) SetOverrides(overrides map[string]models.ThresholdOverride) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds.setOverrides(overrides)
}
