package learning

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
)

// Aggregator groups validated, canonicalized observations by location key.
type Aggregator struct {
	canon *provider.Canonicalizer
}

// NewAggregator creates an Aggregator over the given canonicalizer.
func NewAggregator(canon *provider.Canonicalizer) *Aggregator {
	return &Aggregator{canon: canon}
}

// locationKey identifies one (zip, street, category) group.
type locationKey struct {
	zip      string
	street   string
	category model.Category
}

// Build groups observations into location aggregates. The result is rebuilt
// from scratch on every run; aggregates are never incrementally mutated.
// Output order is deterministic (zip, street, category).
func (a *Aggregator) Build(observations []model.Observation) ([]model.LocationAggregate, Stats) {
	stats := Stats{Total: len(observations)}
	groups := make(map[locationKey]map[string]int)

	for _, obs := range observations {
		if obs.ZipCode == "" || obs.Street == "" {
			stats.MissingLocation++
			continue
		}

		ok, reason := ValidateCategory(obs.RawProviderName, obs.Category)
		if !ok {
			stats.CategoryMismatch++
			stats.Audit = append(stats.Audit, AuditEntry{Observation: obs, Reason: reason})
			continue
		}

		canonical := a.canon.Canonicalize(obs.RawProviderName, obs.Category)
		if canonical == "" {
			stats.MissingLocation++
			continue
		}

		key := locationKey{
			zip:      strings.TrimSpace(obs.ZipCode),
			street:   NormalizeStreet(obs.Street),
			category: obs.Category,
		}
		if groups[key] == nil {
			groups[key] = make(map[string]int)
		}
		groups[key][canonical]++
		stats.Valid++
	}

	aggregates := make([]model.LocationAggregate, 0, len(groups))
	for key, counts := range groups {
		aggregates = append(aggregates, model.LocationAggregate{
			ZipCode:  key.zip,
			Street:   key.street,
			Category: key.category,
			Counts:   counts,
		})
	}
	sort.Slice(aggregates, func(i, j int) bool {
		if aggregates[i].ZipCode != aggregates[j].ZipCode {
			return aggregates[i].ZipCode < aggregates[j].ZipCode
		}
		if aggregates[i].Street != aggregates[j].Street {
			return aggregates[i].Street < aggregates[j].Street
		}
		return aggregates[i].Category < aggregates[j].Category
	})

	zap.L().Info("learning: built aggregates",
		zap.Int("observations", stats.Total),
		zap.Int("valid", stats.Valid),
		zap.Int("category_mismatch", stats.CategoryMismatch),
		zap.Int("missing_location", stats.MissingLocation),
		zap.Int("aggregates", len(aggregates)),
	)

	return aggregates, stats
}

// NormalizeStreet standardizes a street name for grouping: uppercase, no
// punctuation, collapsed spaces, common suffix abbreviations expanded.
func NormalizeStreet(street string) string {
	s := strings.ToUpper(strings.TrimSpace(street))
	s = strings.NewReplacer(".", "", ",", "").Replace(s)
	fields := strings.Fields(s)
	for i, f := range fields {
		if full, ok := streetSuffixes[f]; ok {
			fields[i] = full
		}
	}
	return strings.Join(fields, " ")
}

var streetSuffixes = map[string]string{
	"ST":   "STREET",
	"AVE":  "AVENUE",
	"AV":   "AVENUE",
	"BLVD": "BOULEVARD",
	"DR":   "DRIVE",
	"LN":   "LANE",
	"RD":   "ROAD",
	"CT":   "COURT",
	"PL":   "PLACE",
	"PKWY": "PARKWAY",
	"HWY":  "HIGHWAY",
	"CIR":  "CIRCLE",
	"TER":  "TERRACE",
}
