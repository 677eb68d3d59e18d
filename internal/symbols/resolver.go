package symbols

import (
	"strings"

	"github.com/minhvq/gapspike/internal/models"
)

// Resolution is the outcome of resolving one raw symbol string.
// Found=false marks a cached miss: the caller falls back to percent-based
// classification with generic thresholds.
type Resolution struct {
	Canonical    string
	Config       *models.CanonicalConfig
	MatchedAlias string
	Found        bool
}

type aliasEntry struct {
	lower     string
	original  string
	canonical string
}

// Resolver performs multi-tier matching of broker symbols against the
// canonical configuration set, memoizing every result including misses.
//
// Resolver is not internally synchronized; the engine guards it with the
// same lock that protects the rest of its state.
type Resolver struct {
	configs []models.CanonicalConfig
	byName  map[string]*models.CanonicalConfig
	reverse map[string]string // alias (lower) -> canonical name, first wins
	aliases []aliasEntry      // configuration load order
	cache   map[string]Resolution

	scans int // full alias scans performed, for cache verification in tests
}

// NewResolver builds a resolver over the given canonical configuration set.
// The canonical name of each entry is itself registered as a legal alias.
func NewResolver(configs []models.CanonicalConfig) *Resolver {
	r := &Resolver{}
	r.Reload(configs)
	return r
}

// Reload replaces the configuration set and invalidates the resolution
// cache wholesale.
func (r *Resolver) Reload(configs []models.CanonicalConfig) {
	r.configs = configs
	r.byName = make(map[string]*models.CanonicalConfig, len(configs))
	r.reverse = make(map[string]string)
	r.aliases = r.aliases[:0]
	r.cache = make(map[string]Resolution)

	for i := range r.configs {
		cfg := &r.configs[i]
		r.byName[cfg.Name] = cfg
		r.register(cfg.Name, cfg.Name)
		for _, alias := range cfg.Aliases {
			r.register(alias, cfg.Name)
		}
	}
}

// register adds one alias; duplicate alias strings across the configuration
// set keep their first registration.
func (r *Resolver) register(alias, canonical string) {
	lower := strings.ToLower(alias)
	if _, exists := r.reverse[lower]; exists {
		return
	}
	r.reverse[lower] = canonical
	r.aliases = append(r.aliases, aliasEntry{lower: lower, original: alias, canonical: canonical})
}

// Resolve maps a raw broker symbol to its canonical configuration entry.
// Tiers, in order: cache, exact reverse-map lookup, longest compatible
// prefix, category (FX-like 6-char prefix or normalized equality).
// Every outcome is cached before returning, misses included.
func (r *Resolver) Resolve(raw string) Resolution {
	if res, ok := r.cache[raw]; ok {
		return res
	}

	lower := strings.ToLower(strings.TrimSpace(raw))

	res, ok := r.resolveExact(raw, lower)
	if !ok {
		res, ok = r.resolvePrefix(lower)
	}
	if !ok {
		res, ok = r.resolveCategory(lower)
	}
	if !ok {
		res = Resolution{}
	}

	r.cache[raw] = res
	return res
}

func (r *Resolver) resolveExact(raw, lower string) (Resolution, bool) {
	canonical, ok := r.reverse[lower]
	if !ok {
		return Resolution{}, false
	}
	cfg := r.byName[canonical]

	matched := canonical
	if !strings.EqualFold(raw, canonical) {
		for _, alias := range cfg.Aliases {
			if strings.ToLower(alias) == lower {
				matched = alias
				break
			}
		}
	}
	return Resolution{Canonical: canonical, Config: cfg, MatchedAlias: matched, Found: true}, true
}

func (r *Resolver) resolvePrefix(lower string) (Resolution, bool) {
	r.scans++

	var best *aliasEntry
	for i := range r.aliases {
		a := &r.aliases[i]
		if !strings.HasPrefix(lower, a.lower) {
			continue
		}
		if !lengthCompatible(len(a.lower), len(lower)) {
			continue
		}
		if best == nil || len(a.lower) > len(best.lower) {
			best = a
		}
	}
	if best == nil {
		return Resolution{}, false
	}
	return Resolution{
		Canonical:    best.canonical,
		Config:       r.byName[best.canonical],
		MatchedAlias: best.original,
		Found:        true,
	}, true
}

func (r *Resolver) resolveCategory(lower string) (Resolution, bool) {
	norm := Normalize(lower)
	if norm == "" {
		return Resolution{}, false
	}
	fxLike := IsForexLike(norm)

	for i := range r.aliases {
		a := &r.aliases[i]
		na := Normalize(a.lower)
		if na == "" || !lengthCompatible(len(na), len(norm)) {
			continue
		}
		if fxLike {
			if len(na) >= 6 && norm[:6] == na[:6] {
				return Resolution{
					Canonical:    a.canonical,
					Config:       r.byName[a.canonical],
					MatchedAlias: a.original,
					Found:        true,
				}, true
			}
			continue
		}
		if norm == na {
			return Resolution{
				Canonical:    a.canonical,
				Config:       r.byName[a.canonical],
				MatchedAlias: a.original,
				Found:        true,
			}, true
		}
	}
	return Resolution{}, false
}

// HasAliasPrefix reports whether the normalized, lower-cased symbol starts
// with any known alias. Used by the instrument allow-list filter to accept
// venue spellings with arbitrary suffixes.
func (r *Resolver) HasAliasPrefix(symbol string) bool {
	norm := strings.ToLower(Normalize(symbol))
	if norm == "" {
		return false
	}
	for i := range r.aliases {
		if strings.HasPrefix(norm, r.aliases[i].lower) {
			return true
		}
	}
	return false
}

// lengthCompatible guards short aliases from matching longer symbols:
// an alias of one or two characters only matches a symbol of exactly its
// own length, a three or four character alias only matches symbols up to
// four characters, and symbols longer than four characters require an
// alias of at least five.
func lengthCompatible(aliasLen, symbolLen int) bool {
	switch {
	case aliasLen <= 2:
		return symbolLen == aliasLen
	case aliasLen <= 4:
		return symbolLen <= 4
	default:
		return true
	}
}
