package override

import (
	"math"
	"sort"

	"github.com/sells-group/utility-cli/internal/learning"
	"github.com/sells-group/utility-cli/internal/model"
)

// LookupConfig tunes the runtime lookup thresholds.
type LookupConfig struct {
	FuzzyDiscount    float64 // multiplier on fuzzy prefix matches
	MinSharedPrefix  int     // minimum shared leading characters for fuzzy
	NeighborRadiusMi float64 // neighbor consensus search radius
	NeighborMinVotes int     // minimum neighbors inside the radius
	NeighborMajority float64 // minimum agreement among neighbors
}

// DefaultLookupConfig matches the thresholds the tables were learned under.
func DefaultLookupConfig() LookupConfig {
	return LookupConfig{
		FuzzyDiscount:    0.9,
		MinSharedPrefix:  4,
		NeighborRadiusMi: 0.25,
		NeighborMinVotes: 3,
		NeighborMajority: 0.70,
	}
}

// Match is a successful override lookup.
type Match struct {
	Provider    string  `json:"provider"`
	Confidence  float64 `json:"confidence"`
	SampleCount int     `json:"sample_count"`
	Fuzzy       bool    `json:"fuzzy,omitempty"`
}

// Consensus is a successful nearest-neighbor vote.
type Consensus struct {
	Provider  string  `json:"provider"`
	Agreement float64 `json:"agreement"`
	Samples   int     `json:"samples"`
}

// Lookup answers point queries against one immutable snapshot of the learned
// tables. Build a new Lookup per batch rebuild; never mutate one in place.
type Lookup struct {
	cfg      LookupConfig
	exact    map[overrideKey]model.Override
	byZip    map[zipCatKey][]model.Override
	contexts map[zipCatKey]model.ZipContext
	points   map[model.Category][]model.GeoPoint
}

type overrideKey struct {
	zip    string
	street string
	cat    model.Category
}

type zipCatKey struct {
	zip string
	cat model.Category
}

// NewLookup indexes the given snapshot. points are verified geocoded
// observations used only for neighbor consensus; nil disables it.
func NewLookup(cfg LookupConfig, overrides []model.Override, contexts []model.ZipContext, points []model.GeoPoint) *Lookup {
	def := DefaultLookupConfig()
	if cfg.FuzzyDiscount <= 0 {
		cfg.FuzzyDiscount = def.FuzzyDiscount
	}
	if cfg.MinSharedPrefix <= 0 {
		cfg.MinSharedPrefix = def.MinSharedPrefix
	}
	if cfg.NeighborRadiusMi <= 0 {
		cfg.NeighborRadiusMi = def.NeighborRadiusMi
	}
	if cfg.NeighborMinVotes <= 0 {
		cfg.NeighborMinVotes = def.NeighborMinVotes
	}
	if cfg.NeighborMajority <= 0 {
		cfg.NeighborMajority = def.NeighborMajority
	}

	l := &Lookup{
		cfg:      cfg,
		exact:    make(map[overrideKey]model.Override),
		byZip:    make(map[zipCatKey][]model.Override),
		contexts: make(map[zipCatKey]model.ZipContext),
		points:   make(map[model.Category][]model.GeoPoint),
	}

	for _, o := range overrides {
		k := overrideKey{o.ZipCode, o.Street, o.Category}
		l.exact[k] = o
		zk := zipCatKey{o.ZipCode, o.Category}
		l.byZip[zk] = append(l.byZip[zk], o)
	}
	for _, zk := range l.byZip {
		sort.Slice(zk, func(i, j int) bool { return zk[i].Street < zk[j].Street })
	}
	for _, c := range contexts {
		l.contexts[zipCatKey{c.ZipCode, c.Category}] = c
	}
	for _, p := range points {
		if p.ReportedProvider == "" {
			continue
		}
		l.points[p.Category] = append(l.points[p.Category], p)
	}
	return l
}

// CheckOverride resolves a street-level override: exact key first, then a
// prefix match at a confidence discount. Returns nil when neither applies.
func (l *Lookup) CheckOverride(zipCode, street string, category model.Category) *Match {
	normalized := learning.NormalizeStreet(street)
	if normalized == "" {
		return nil
	}

	if o, ok := l.exact[overrideKey{zipCode, normalized, category}]; ok {
		return &Match{Provider: o.Provider, Confidence: o.Confidence, SampleCount: o.SampleCount}
	}

	// Fuzzy: best same-ZIP row sharing a sufficiently long leading prefix.
	var best *model.Override
	for _, o := range l.byZip[zipCatKey{zipCode, category}] {
		if sharedPrefixLen(normalized, o.Street) < l.cfg.MinSharedPrefix {
			continue
		}
		if best == nil || o.Confidence > best.Confidence {
			best = &o
		}
	}
	if best == nil {
		return nil
	}
	return &Match{
		Provider:    best.Provider,
		Confidence:  best.Confidence * l.cfg.FuzzyDiscount,
		SampleCount: best.SampleCount,
		Fuzzy:       true,
	}
}

// Context returns the ZIP context row, or nil when the ZIP is unknown.
func (l *Lookup) Context(zipCode string, category model.Category) *model.ZipContext {
	if c, ok := l.contexts[zipCatKey{zipCode, category}]; ok {
		return &c
	}
	return nil
}

// NeighborConsensus votes among verified points within the radius. It fails
// closed: too few neighbors or too weak a majority returns nil.
func (l *Lookup) NeighborConsensus(lat, lon float64, category model.Category) *Consensus {
	votes := make(map[string]int)
	total := 0
	for _, p := range l.points[category] {
		if haversineMiles(lat, lon, p.Lat, p.Lon) > l.cfg.NeighborRadiusMi {
			continue
		}
		votes[p.ReportedProvider]++
		total++
	}
	if total < l.cfg.NeighborMinVotes {
		return nil
	}

	agg := model.LocationAggregate{Counts: votes}
	provider, agreement := agg.Dominant()
	if agreement < l.cfg.NeighborMajority {
		return nil
	}
	return &Consensus{Provider: provider, Agreement: agreement, Samples: total}
}

func sharedPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

const earthRadiusMiles = 3958.8

// haversineMiles is the great-circle distance between two coordinates.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
