// Package boundary finds geographic provider boundaries inside ZIP codes:
// a simple separating-line test over geocoded points, plus street-level rule
// mining that generalizes beyond coordinates.
package boundary

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
)

// Lookuper resolves a coordinate to a provider name via an independent
// geographic source. Used only for validation sampling.
type Lookuper interface {
	Lookup(ctx context.Context, lat, lon float64, state string) (string, error)
}

// AnalyzerConfig bounds the separating-line test.
type AnalyzerConfig struct {
	MinPoints      int     // minimum geocoded points per ZIP
	MeanGapDegrees float64 // minimum gap between group means to test a split
	DominanceRatio float64 // per-side frequency ratio required on both sides
	Workers        int     // parallel per-ZIP analyses
	ValidateSample int     // points sampled per ZIP for independent validation
}

// Split is an accepted separating line between two providers.
type Split struct {
	RuleType      model.RuleType `json:"rule_type"` // latitude or longitude
	Boundary      float64        `json:"boundary"`  // midpoint between group means
	HighProvider  string         `json:"high_provider"` // dominant on the north/east side
	LowProvider   string         `json:"low_provider"`  // dominant on the south/west side
	Confidence    float64        `json:"confidence"`    // correctly-classified fraction
	SampleCount   int            `json:"sample_count"`
}

// Cluster is a descriptive per-provider centroid and spread. Not used to gate
// the split decision.
type Cluster struct {
	Provider  string  `json:"provider"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	RadiusDeg float64 `json:"radius_deg"`
	Count     int     `json:"count"`
}

// ZipAnalysis is the result for one (zip, category).
type ZipAnalysis struct {
	ZipCode       string         `json:"zip_code"`
	State         string         `json:"state,omitempty"`
	Category      model.Category `json:"category"`
	Providers     []string       `json:"providers"`
	PointCount    int            `json:"point_count"`
	Split         *Split         `json:"split,omitempty"`
	Clusters      []Cluster      `json:"clusters"`
	AgreementRate *float64       `json:"agreement_rate,omitempty"` // independent-lookup agreement over the sample
	Validated     int            `json:"validated"`
	LookupErrors  int            `json:"lookup_errors"`
}

// ZipPoints is the analyzer input for one ZIP: geocoded points whose provider
// names are already canonicalized.
type ZipPoints struct {
	ZipCode  string
	State    string
	Category model.Category
	Points   []model.GeoPoint
}

// Analyzer runs the per-ZIP separating-line test across a worker pool.
type Analyzer struct {
	cfg    AnalyzerConfig
	canon  *provider.Canonicalizer
	lookup Lookuper // nil disables validation
}

func NewAnalyzer(cfg AnalyzerConfig, canon *provider.Canonicalizer, lookup Lookuper) *Analyzer {
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = 4
	}
	if cfg.MeanGapDegrees <= 0 {
		cfg.MeanGapDegrees = 0.005
	}
	if cfg.DominanceRatio <= 0 {
		cfg.DominanceRatio = 2.0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Analyzer{cfg: cfg, canon: canon, lookup: lookup}
}

// Analyze runs every eligible ZIP through the separating-line test. Results
// come back sorted by (zip, category) regardless of worker completion order.
func (a *Analyzer) Analyze(ctx context.Context, zips []ZipPoints) ([]ZipAnalysis, error) {
	var (
		mu      sync.Mutex
		results []ZipAnalysis
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)

	for _, zp := range zips {
		g.Go(func() error {
			res, ok := a.analyzeZip(ctx, zp)
			if !ok {
				return nil
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ZipCode != results[j].ZipCode {
			return results[i].ZipCode < results[j].ZipCode
		}
		return results[i].Category < results[j].Category
	})

	splits := 0
	for _, r := range results {
		if r.Split != nil {
			splits++
		}
	}
	zap.L().Info("boundary analysis complete",
		zap.Int("zips", len(results)),
		zap.Int("splits", splits))
	return results, nil
}

// analyzeZip returns ok=false when the ZIP does not qualify for analysis.
func (a *Analyzer) analyzeZip(ctx context.Context, zp ZipPoints) (ZipAnalysis, bool) {
	groups := groupByProvider(zp.Points)
	if len(zp.Points) < a.cfg.MinPoints || len(groups) < 2 {
		return ZipAnalysis{}, false
	}

	first, second := topTwoProviders(groups)
	res := ZipAnalysis{
		ZipCode:    zp.ZipCode,
		State:      zp.State,
		Category:   zp.Category,
		Providers:  providerNames(groups),
		PointCount: len(zp.Points),
		Clusters:   buildClusters(groups),
	}

	// Latitude before longitude: the first accepted axis wins.
	if split := a.trySplit(groups[first], groups[second], first, second, model.RuleLatitude); split != nil {
		res.Split = split
	} else if split := a.trySplit(groups[first], groups[second], first, second, model.RuleLongitude); split != nil {
		res.Split = split
	}

	if a.lookup != nil && a.cfg.ValidateSample > 0 {
		a.validate(ctx, zp, &res)
	}
	return res, true
}

// trySplit tests one axis: gap between group means, then symmetric dominance
// at the midpoint.
func (a *Analyzer) trySplit(pointsA, pointsB []model.GeoPoint, provA, provB string, axis model.RuleType) *Split {
	coord := func(p model.GeoPoint) float64 {
		if axis == model.RuleLatitude {
			return p.Lat
		}
		return p.Lon
	}

	meanA := meanCoord(pointsA, coord)
	meanB := meanCoord(pointsB, coord)
	if math.Abs(meanA-meanB) <= a.cfg.MeanGapDegrees {
		return nil
	}

	// Orient so "high" is the provider whose mean is greater.
	high, low := provA, provB
	highPts, lowPts := pointsA, pointsB
	if meanB > meanA {
		high, low = provB, provA
		highPts, lowPts = pointsB, pointsA
	}
	mid := (meanA + meanB) / 2

	highAbove, highBelow := countSides(highPts, coord, mid)
	lowAbove, lowBelow := countSides(lowPts, coord, mid)

	// Symmetric dominance: the high provider must dominate above the line AND
	// the low provider must dominate below it. A one-sided majority is not
	// enough.
	if highAbove == 0 || lowBelow == 0 {
		return nil
	}
	if float64(highAbove) < a.cfg.DominanceRatio*float64(lowAbove) {
		return nil
	}
	if float64(lowBelow) < a.cfg.DominanceRatio*float64(highBelow) {
		return nil
	}

	total := len(highPts) + len(lowPts)
	return &Split{
		RuleType:     axis,
		Boundary:     mid,
		HighProvider: high,
		LowProvider:  low,
		Confidence:   float64(highAbove+lowBelow) / float64(total),
		SampleCount:  total,
	}
}

// validate samples points against the independent lookup and records the
// agreement rate. Lookup failures are counted, never fatal.
func (a *Analyzer) validate(ctx context.Context, zp ZipPoints, res *ZipAnalysis) {
	sample := zp.Points
	if len(sample) > a.cfg.ValidateSample {
		sample = sample[:a.cfg.ValidateSample]
	}

	agreed := 0
	checked := 0
	for _, p := range sample {
		if ctx.Err() != nil {
			return
		}
		independent, err := a.lookup.Lookup(ctx, p.Lat, p.Lon, zp.State)
		if err != nil {
			res.LookupErrors++
			continue
		}
		if independent == "" {
			continue
		}
		checked++
		if a.canon.ProvidersMatch(p.ReportedProvider, independent, zp.Category) {
			agreed++
		}
	}

	res.Validated = checked
	if checked > 0 {
		rate := float64(agreed) / float64(checked)
		res.AgreementRate = &rate
		if rate < 0.5 {
			zap.L().Warn("low agreement with independent lookup",
				zap.String("zip", zp.ZipCode),
				zap.String("category", string(zp.Category)),
				zap.Float64("rate", rate))
		}
	}
}

// SplitRules renders an accepted split as persistable rules, one per side.
// The pattern embeds the boundary so re-running over the same data upserts in
// place.
func SplitRules(res ZipAnalysis) []model.BoundaryRule {
	if res.Split == nil {
		return nil
	}
	s := res.Split

	highSide, lowSide := "north_of", "south_of"
	if s.RuleType == model.RuleLongitude {
		highSide, lowSide = "east_of", "west_of"
	}

	return []model.BoundaryRule{
		{
			ZipCode:             res.ZipCode,
			State:               res.State,
			UtilityName:         s.HighProvider,
			Category:            res.Category,
			RuleType:            s.RuleType,
			Pattern:             fmt.Sprintf("%s:%.5f", highSide, s.Boundary),
			Confidence:          s.Confidence,
			SampleCount:         s.SampleCount,
			ConflictingProvider: s.LowProvider,
		},
		{
			ZipCode:             res.ZipCode,
			State:               res.State,
			UtilityName:         s.LowProvider,
			Category:            res.Category,
			RuleType:            s.RuleType,
			Pattern:             fmt.Sprintf("%s:%.5f", lowSide, s.Boundary),
			Confidence:          s.Confidence,
			SampleCount:         s.SampleCount,
			ConflictingProvider: s.HighProvider,
		},
	}
}

func groupByProvider(points []model.GeoPoint) map[string][]model.GeoPoint {
	groups := make(map[string][]model.GeoPoint)
	for _, p := range points {
		if p.ReportedProvider == "" {
			continue
		}
		groups[p.ReportedProvider] = append(groups[p.ReportedProvider], p)
	}
	return groups
}

// topTwoProviders returns the two most frequent providers, ties broken
// lexicographically for determinism.
func topTwoProviders(groups map[string][]model.GeoPoint) (string, string) {
	names := providerNames(groups)
	sort.Slice(names, func(i, j int) bool {
		ni, nj := len(groups[names[i]]), len(groups[names[j]])
		if ni != nj {
			return ni > nj
		}
		return names[i] < names[j]
	})
	return names[0], names[1]
}

func providerNames(groups map[string][]model.GeoPoint) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func meanCoord(points []model.GeoPoint, coord func(model.GeoPoint) float64) float64 {
	sum := 0.0
	for _, p := range points {
		sum += coord(p)
	}
	return sum / float64(len(points))
}

func countSides(points []model.GeoPoint, coord func(model.GeoPoint) float64, mid float64) (above, below int) {
	for _, p := range points {
		if coord(p) > mid {
			above++
		} else {
			below++
		}
	}
	return above, below
}

func buildClusters(groups map[string][]model.GeoPoint) []Cluster {
	clusters := make([]Cluster, 0, len(groups))
	for _, name := range providerNames(groups) {
		pts := groups[name]
		cLat := meanCoord(pts, func(p model.GeoPoint) float64 { return p.Lat })
		cLon := meanCoord(pts, func(p model.GeoPoint) float64 { return p.Lon })

		maxR := 0.0
		for _, p := range pts {
			r := math.Hypot(p.Lat-cLat, p.Lon-cLon)
			if r > maxR {
				maxR = r
			}
		}
		clusters = append(clusters, Cluster{
			Provider:  name,
			Lat:       cLat,
			Lon:       cLon,
			RadiusDeg: maxR,
			Count:     len(pts),
		})
	}
	return clusters
}
