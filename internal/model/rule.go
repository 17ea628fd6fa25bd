package model

import "time"

// RuleType identifies the granularity of a learned boundary rule.
type RuleType string

const (
	RuleStreetName        RuleType = "street_name"
	RuleStreetPrefix      RuleType = "street_prefix"
	RuleStreetNumberRange RuleType = "street_number_range"
	RuleLatitude          RuleType = "latitude"
	RuleLongitude         RuleType = "longitude"
)

// AllRuleTypes returns every rule type.
func AllRuleTypes() []RuleType {
	return []RuleType{
		RuleStreetName,
		RuleStreetPrefix,
		RuleStreetNumberRange,
		RuleLatitude,
		RuleLongitude,
	}
}

// BoundaryRule is a learned geographic override rule. Rules are upserted by
// (zip_code, rule_type, pattern) so re-running learning is idempotent.
type BoundaryRule struct {
	ID                  string    `json:"id"`
	ZipCode             string    `json:"zip_code"`
	City                string    `json:"city"`
	State               string    `json:"state"`
	UtilityName         string    `json:"utility_name"`
	Category            Category  `json:"category"`
	RuleType            RuleType  `json:"rule_type"`
	Pattern             string    `json:"pattern"`
	Confidence          float64   `json:"confidence"`
	SampleCount         int       `json:"sample_count"`
	ConflictingProvider string    `json:"conflicting_provider,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Override is a persisted street-level hard override row, keyed by
// (zip_code, street, category).
type Override struct {
	ZipCode     string    `json:"zip_code"`
	Street      string    `json:"street"`
	Category    Category  `json:"category"`
	Provider    string    `json:"provider"`
	Confidence  float64   `json:"confidence"`
	SampleCount int       `json:"sample_count"`
	Action      Action    `json:"action"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ZipContext is the persisted AI-context row for one (zip, category): a
// human-readable summary plus the raw pattern list for the disambiguator.
type ZipContext struct {
	ZipCode           string    `json:"zip_code"`
	Category          Category  `json:"category"`
	ObservedProviders []string  `json:"observed_providers"`
	Patterns          []string  `json:"patterns"`
	IsSplitTerritory  bool      `json:"is_split_territory"`
	ContextText       string    `json:"context_text"`
	UpdatedAt         time.Time `json:"updated_at"`
}
