// Package override builds and serves the learned street-level override and
// ZIP-context tables that sit in front of slower attribution sources.
package override

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/learning"
	"github.com/sells-group/utility-cli/internal/model"
)

// Build converts scored aggregates and learned rules into the persisted
// override and context tables. Overrides carry only hard_override decisions;
// weaker tiers surface through the ZIP context instead.
func Build(aggregates []model.LocationAggregate, rules []model.BoundaryRule) ([]model.Override, []model.ZipContext) {
	var overrides []model.Override

	type zipKey struct {
		zip string
		cat model.Category
	}
	providersByZip := make(map[zipKey]map[string]bool)
	patternsByZip := make(map[zipKey][]string)

	for _, agg := range aggregates {
		decision := learning.Score(agg)
		key := zipKey{agg.ZipCode, agg.Category}

		if providersByZip[key] == nil {
			providersByZip[key] = make(map[string]bool)
		}
		for name := range agg.Counts {
			providersByZip[key][name] = true
		}

		switch decision.Action {
		case model.ActionHardOverride:
			overrides = append(overrides, model.Override{
				ZipCode:     agg.ZipCode,
				Street:      agg.Street,
				Category:    agg.Category,
				Provider:    decision.DominantProvider,
				Confidence:  decision.Confidence,
				SampleCount: decision.SampleCount,
				Action:      decision.Action,
			})
		case model.ActionAIBoost, model.ActionAIContext:
			patternsByZip[key] = append(patternsByZip[key], fmt.Sprintf(
				"street %s -> %s (%.0f%% of %d)",
				agg.Street, decision.DominantProvider, decision.AgreementRate*100, decision.SampleCount))
		}
	}

	for _, r := range rules {
		key := zipKey{r.ZipCode, r.Category}
		patternsByZip[key] = append(patternsByZip[key], fmt.Sprintf(
			"%s %s -> %s (%.0f%% of %d)",
			r.RuleType, r.Pattern, r.UtilityName, r.Confidence*100, r.SampleCount))
	}

	var contexts []model.ZipContext
	for key, providers := range providersByZip {
		names := make([]string, 0, len(providers))
		for name := range providers {
			names = append(names, name)
		}
		sort.Strings(names)

		patterns := patternsByZip[key]
		sort.Strings(patterns)

		split := len(names) >= 2
		contexts = append(contexts, model.ZipContext{
			ZipCode:           key.zip,
			Category:          key.cat,
			ObservedProviders: names,
			Patterns:          patterns,
			IsSplitTerritory:  split,
			ContextText:       contextText(key.zip, key.cat, names, patterns, split),
		})
	}

	sort.Slice(overrides, func(i, j int) bool {
		if overrides[i].ZipCode != overrides[j].ZipCode {
			return overrides[i].ZipCode < overrides[j].ZipCode
		}
		if overrides[i].Street != overrides[j].Street {
			return overrides[i].Street < overrides[j].Street
		}
		return overrides[i].Category < overrides[j].Category
	})
	sort.Slice(contexts, func(i, j int) bool {
		if contexts[i].ZipCode != contexts[j].ZipCode {
			return contexts[i].ZipCode < contexts[j].ZipCode
		}
		return contexts[i].Category < contexts[j].Category
	})

	zap.L().Info("override tables built",
		zap.Int("overrides", len(overrides)),
		zap.Int("contexts", len(contexts)))
	return overrides, contexts
}

// contextText renders the human-readable summary handed to the downstream
// disambiguator.
func contextText(zip string, cat model.Category, providers, patterns []string, split bool) string {
	var b strings.Builder
	if split {
		fmt.Fprintf(&b, "ZIP %s is split territory for %s service between %s.",
			zip, cat, strings.Join(providers, " and "))
	} else if len(providers) == 1 {
		fmt.Fprintf(&b, "ZIP %s has a single observed %s provider: %s.", zip, cat, providers[0])
	} else {
		fmt.Fprintf(&b, "ZIP %s has no observed %s providers.", zip, cat)
	}
	if len(patterns) > 0 {
		fmt.Fprintf(&b, " Known patterns: %s.", strings.Join(patterns, "; "))
	}
	return b.String()
}
