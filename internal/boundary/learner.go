package boundary

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/learning"
	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
)

// LearnerConfig sets the agreement thresholds for each pattern kind. Prefix
// rules need both a higher agreement and a sample floor because a prefix
// generalizes across many more addresses than a single street.
type LearnerConfig struct {
	MinStreetAgreement float64 // street_name rules
	MinPrefixAgreement float64 // street_prefix rules
	MinPrefixSamples   int     // street_prefix rules
	MinRangeAgreement  float64 // street_number_range rules
}

// Learner mines street-level provider rules from observations in
// multi-provider ZIPs.
type Learner struct {
	cfg   LearnerConfig
	canon *provider.Canonicalizer
}

func NewLearner(cfg LearnerConfig, canon *provider.Canonicalizer) *Learner {
	if cfg.MinStreetAgreement <= 0 {
		cfg.MinStreetAgreement = 0.70
	}
	if cfg.MinPrefixAgreement <= 0 {
		cfg.MinPrefixAgreement = 0.80
	}
	if cfg.MinPrefixSamples <= 0 {
		cfg.MinPrefixSamples = 3
	}
	if cfg.MinRangeAgreement <= 0 {
		cfg.MinRangeAgreement = 0.75
	}
	return &Learner{cfg: cfg, canon: canon}
}

// zipGroup collects canonicalized observations for one (zip, category).
type zipGroup struct {
	zipCode  string
	city     string
	state    string
	category model.Category
	obs      []canonObservation
}

type canonObservation struct {
	street    string // normalized
	provider  string // canonical
	houseNum  int
	hasNumber bool
}

// Learn mines rules from the observation set. Only ZIPs with two or more
// distinct canonical providers in a category are considered; single-provider
// ZIPs need no boundary rules. Output is sorted by (zip, ruleType, pattern)
// so repeated runs over the same data are byte-identical.
func (l *Learner) Learn(observations []model.Observation) []model.BoundaryRule {
	groups := l.groupObservations(observations)

	var rules []model.BoundaryRule
	for _, g := range groups {
		if !multiProvider(g.obs) {
			continue
		}
		rules = append(rules, l.streetRules(g)...)
		rules = append(rules, l.prefixRules(g)...)
		rules = append(rules, l.rangeRules(g)...)
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].ZipCode != rules[j].ZipCode {
			return rules[i].ZipCode < rules[j].ZipCode
		}
		if rules[i].RuleType != rules[j].RuleType {
			return rules[i].RuleType < rules[j].RuleType
		}
		return rules[i].Pattern < rules[j].Pattern
	})

	zap.L().Info("rule learning complete",
		zap.Int("groups", len(groups)),
		zap.Int("rules", len(rules)))
	return rules
}

func (l *Learner) groupObservations(observations []model.Observation) []zipGroup {
	byKey := make(map[string]*zipGroup)
	for _, o := range observations {
		if o.ZipCode == "" || o.Street == "" || !o.Category.Valid() {
			continue
		}
		canonical := l.canon.Canonicalize(o.RawProviderName, o.Category)
		if canonical == "" {
			continue
		}

		key := o.ZipCode + "|" + string(o.Category)
		g, ok := byKey[key]
		if !ok {
			g = &zipGroup{zipCode: o.ZipCode, city: o.City, state: o.State, category: o.Category}
			byKey[key] = g
		}

		num, hasNum := houseNumber(o.Address)
		g.obs = append(g.obs, canonObservation{
			street:    learning.NormalizeStreet(o.Street),
			provider:  canonical,
			houseNum:  num,
			hasNumber: hasNum,
		})
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]zipGroup, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, *byKey[k])
	}
	return groups
}

// streetRules emits one rule per street whose dominant provider reaches the
// street agreement threshold.
func (l *Learner) streetRules(g zipGroup) []model.BoundaryRule {
	byStreet := make(map[string]map[string]int)
	for _, o := range g.obs {
		if byStreet[o.street] == nil {
			byStreet[o.street] = make(map[string]int)
		}
		byStreet[o.street][o.provider]++
	}
	return l.minePatterns(g, byStreet, model.RuleStreetName, l.cfg.MinStreetAgreement, 1)
}

// prefixRules groups streets by their first four characters after stripping
// directional prefixes.
func (l *Learner) prefixRules(g zipGroup) []model.BoundaryRule {
	byPrefix := make(map[string]map[string]int)
	for _, o := range g.obs {
		prefix := StreetPrefix(o.street)
		if prefix == "" {
			continue
		}
		if byPrefix[prefix] == nil {
			byPrefix[prefix] = make(map[string]int)
		}
		byPrefix[prefix][o.provider]++
	}
	return l.minePatterns(g, byPrefix, model.RuleStreetPrefix, l.cfg.MinPrefixAgreement, l.cfg.MinPrefixSamples)
}

// rangeRules buckets house numbers per street into 1000-wide ranges.
func (l *Learner) rangeRules(g zipGroup) []model.BoundaryRule {
	byBucket := make(map[string]map[string]int)
	for _, o := range g.obs {
		if !o.hasNumber {
			continue
		}
		bucket := (o.houseNum / 1000) * 1000
		pattern := fmt.Sprintf("%s:%d-%d", o.street, bucket, bucket+999)
		if byBucket[pattern] == nil {
			byBucket[pattern] = make(map[string]int)
		}
		byBucket[pattern][o.provider]++
	}
	return l.minePatterns(g, byBucket, model.RuleStreetNumberRange, l.cfg.MinRangeAgreement, 1)
}

// minePatterns converts per-pattern provider counts into rules wherever the
// dominant provider clears the agreement and sample thresholds.
func (l *Learner) minePatterns(g zipGroup, counts map[string]map[string]int, ruleType model.RuleType, minAgreement float64, minSamples int) []model.BoundaryRule {
	var rules []model.BoundaryRule
	for pattern, providers := range counts {
		agg := model.LocationAggregate{Counts: providers}
		total := agg.SampleCount()
		if total < minSamples {
			continue
		}
		dominant, agreement := agg.Dominant()
		if agreement < minAgreement {
			continue
		}
		rules = append(rules, model.BoundaryRule{
			ZipCode:             g.zipCode,
			City:                g.city,
			State:               g.state,
			UtilityName:         dominant,
			Category:            g.category,
			RuleType:            ruleType,
			Pattern:             pattern,
			Confidence:          agreement,
			SampleCount:         total,
			ConflictingProvider: runnerUp(providers, dominant),
		})
	}
	return rules
}

// MatchRules returns the rules applicable to one address, sorted by
// descending confidence. houseNumber < 0 means unknown.
func MatchRules(rules []model.BoundaryRule, zipCode, street string, houseNum int) []model.BoundaryRule {
	normalized := learning.NormalizeStreet(street)
	prefix := StreetPrefix(normalized)

	var matched []model.BoundaryRule
	for _, r := range rules {
		if r.ZipCode != zipCode {
			continue
		}
		switch r.RuleType {
		case model.RuleStreetName:
			if r.Pattern == normalized {
				matched = append(matched, r)
			}
		case model.RuleStreetPrefix:
			if prefix != "" && r.Pattern == prefix {
				matched = append(matched, r)
			}
		case model.RuleStreetNumberRange:
			if houseNum >= 0 && matchesRange(r.Pattern, normalized, houseNum) {
				matched = append(matched, r)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Confidence > matched[j].Confidence
	})
	return matched
}

// directionalPrefixes are stripped before computing a street prefix so
// "N MAIN" and "S MAIN" share one.
var directionalPrefixes = []string{
	"NORTH ", "SOUTH ", "EAST ", "WEST ",
	"N ", "S ", "E ", "W ", "NE ", "NW ", "SE ", "SW ",
}

// StreetPrefix returns the first four characters of a normalized street name
// after stripping a directional prefix. Short names yield no prefix.
func StreetPrefix(street string) string {
	for _, d := range directionalPrefixes {
		if strings.HasPrefix(street, d) {
			street = strings.TrimPrefix(street, d)
			break
		}
	}
	street = strings.TrimSpace(street)
	if len(street) < 4 {
		return ""
	}
	return street[:4]
}

// houseNumber extracts a leading street number from a full address line.
func houseNumber(address string) (int, bool) {
	fields := strings.Fields(strings.TrimSpace(address))
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func matchesRange(pattern, street string, houseNum int) bool {
	idx := strings.LastIndex(pattern, ":")
	if idx < 0 || pattern[:idx] != street {
		return false
	}
	var lo, hi int
	if _, err := fmt.Sscanf(pattern[idx+1:], "%d-%d", &lo, &hi); err != nil {
		return false
	}
	return houseNum >= lo && houseNum <= hi
}

func multiProvider(obs []canonObservation) bool {
	seen := ""
	for _, o := range obs {
		if seen == "" {
			seen = o.provider
		} else if o.provider != seen {
			return true
		}
	}
	return false
}

func runnerUp(counts map[string]int, dominant string) string {
	best := ""
	bestN := 0
	for name, n := range counts {
		if name == dominant {
			continue
		}
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	return best
}
