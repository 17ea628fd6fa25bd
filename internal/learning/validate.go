// Package learning turns raw tenant observations into confidence-scored
// location aggregates.
package learning

import (
	"fmt"
	"strings"

	"github.com/sells-group/utility-cli/internal/model"
)

// categoryIndicators maps each category to name tokens that strongly signal
// membership. Generic words like ENERGY are deliberately absent: they appear
// in company names across all three categories.
var categoryIndicators = map[model.Category][]string{
	model.CategoryElectric: {"ELECTRIC", "POWER", "EDISON", "LIGHT"},
	model.CategoryGas:      {"GAS", "PROPANE"},
	model.CategoryWater:    {"WATER", "AQUA", "SEWER", "WASTEWATER"},
}

// ValidateCategory screens an observation for category/name disagreement: a
// provider name carrying another category's indicator but none of its own is
// rejected. Rejected observations are excluded from aggregates but retained
// in the run's audit tally, never silently dropped.
func ValidateCategory(rawName string, category model.Category) (bool, string) {
	upper := strings.ToUpper(rawName)

	hasOwn := containsAny(upper, categoryIndicators[category])
	if hasOwn {
		return true, ""
	}

	for _, other := range model.AllCategories() {
		if other == category {
			continue
		}
		if containsAny(upper, categoryIndicators[other]) {
			return false, fmt.Sprintf("name indicates %s but reported under %s", other, category)
		}
	}

	// No indicator either way: accept. Many provider names carry no
	// category token at all.
	return true, ""
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// AuditEntry records one observation excluded by type validation.
type AuditEntry struct {
	Observation model.Observation `json:"observation"`
	Reason      string            `json:"reason"`
}

// Stats summarizes one aggregation run. Per-observation failures surface here
// in aggregate rather than aborting the run.
type Stats struct {
	Total            int          `json:"total"`
	Valid            int          `json:"valid"`
	CategoryMismatch int          `json:"category_mismatch"`
	MissingLocation  int          `json:"missing_location"`
	Audit            []AuditEntry `json:"audit,omitempty"`
}
