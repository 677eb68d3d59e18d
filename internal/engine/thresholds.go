package engine

import (
	"strings"
	"time"

	"github.com/minhvq/gapspike/internal/models"
)

// thresholdKind selects which percent threshold is being resolved.
type thresholdKind string

const (
	kindGapPercent   thresholdKind = "gap-percent"
	kindSpikePercent thresholdKind = "spike-percent"
)

// thresholdCacheTTL bounds how long a resolved percent threshold is reused
// before the override chain is walked again.
const thresholdCacheTTL = 60 * time.Second

type thresholdCacheEntry struct {
	value      float64
	computedAt time.Time
}

// thresholdCacheKey keeps venue and symbol separate so a venue name that
// itself contains an underscore cannot alias another instrument's entry.
type thresholdCacheKey struct {
	venue  string
	symbol string
	kind   thresholdKind
}

// thresholdResolver walks the override priority chain and caches results.
// It shares the engine lock; no synchronization of its own.
type thresholdResolver struct {
	overrides    map[string]models.ThresholdOverride
	gapDefault   float64
	spikeDefault float64
	cache        map[thresholdCacheKey]thresholdCacheEntry
	now          func() time.Time
}

func newThresholdResolver(overrides map[string]models.ThresholdOverride, gapDefault, spikeDefault float64, now func() time.Time) *thresholdResolver {
	return &thresholdResolver{
		overrides:    lowerKeys(overrides),
		gapDefault:   gapDefault,
		spikeDefault: spikeDefault,
		cache:        make(map[thresholdCacheKey]thresholdCacheEntry),
		now:          now,
	}
}

// lowerKeys normalizes override keys. Configuration loaders lower-case map
// keys, so all override lookups are case-insensitive on venue and symbol.
func lowerKeys(overrides map[string]models.ThresholdOverride) map[string]models.ThresholdOverride {
	out := make(map[string]models.ThresholdOverride, len(overrides))
	for k, v := range overrides {
		out[strings.ToLower(k)] = v
	}
	return out
}

// resolve returns the percent threshold for an instrument. Priority, first
// hit wins: venue+symbol override, venue wildcard, bare symbol, global
// wildcard, hard default. Results are cached for thresholdCacheTTL and
// recomputed transparently on expiry.
func (t *thresholdResolver) resolve(venue, symbol string, kind thresholdKind) float64 {
	cacheKey := thresholdCacheKey{venue: venue, symbol: symbol, kind: kind}
	if e, ok := t.cache[cacheKey]; ok && t.now().Sub(e.computedAt) < thresholdCacheTTL {
		return e.value
	}
	v := t.lookup(venue, symbol, kind)
	t.cache[cacheKey] = thresholdCacheEntry{value: v, computedAt: t.now()}
	return v
}

func (t *thresholdResolver) lookup(venue, symbol string, kind thresholdKind) float64 {
	venue, symbol = strings.ToLower(venue), strings.ToLower(symbol)
	keys := []string{
		venue + "_" + symbol,
		venue + "_*",
		symbol,
		"*",
	}
	for _, k := range keys {
		ov, ok := t.overrides[k]
		if !ok {
			continue
		}
		switch kind {
		case kindGapPercent:
			if ov.GapPercent != nil {
				return *ov.GapPercent
			}
		case kindSpikePercent:
			if ov.SpikePercent != nil {
				return *ov.SpikePercent
			}
		}
	}
	if kind == kindSpikePercent {
		return t.spikeDefault
	}
	return t.gapDefault
}

// override returns the instrument-level override entry, if any. Point-mode
// thresholds read this directly and bypass the percent cache.
func (t *thresholdResolver) override(venue, symbol string) (models.ThresholdOverride, bool) {
	ov, ok := t.overrides[strings.ToLower(models.InstrumentKey(venue, symbol))]
	return ov, ok
}

// setOverrides replaces the override set after a bulk edit and clears the
// cache so no stale values survive.
func (t *thresholdResolver) setOverrides(overrides map[string]models.ThresholdOverride) {
	t.overrides = lowerKeys(overrides)
	t.clear()
}

func (t *thresholdResolver) clear() {
	t.cache = make(map[thresholdCacheKey]thresholdCacheEntry)
}
