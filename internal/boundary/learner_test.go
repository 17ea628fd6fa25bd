package boundary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
)

func obs(zip, address, street, rawProvider string) model.Observation {
	return model.Observation{
		Address:         address,
		ZipCode:         zip,
		Street:          street,
		State:           "TX",
		Category:        model.CategoryElectric,
		RawProviderName: rawProvider,
		ReportedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func splitZipObservations() []model.Observation {
	// Maple St is solidly Oncor; Cedar Ave is solidly TXU. The ZIP as a
	// whole is contested, so rules are minable.
	return []model.Observation{
		obs("75201", "100 Maple St", "Maple St", "Oncor Electric Delivery"),
		obs("75201", "102 Maple St", "Maple Street", "ONCOR"),
		obs("75201", "104 Maple St", "Maple St", "Oncor"),
		obs("75201", "1200 Cedar Ave", "Cedar Ave", "TXU Energy"),
		obs("75201", "1202 Cedar Ave", "Cedar Avenue", "TXU"),
		obs("75201", "1204 Cedar Ave", "Cedar Ave", "TXU Energy Retail"),
	}
}

func TestLearnStreetRules(t *testing.T) {
	l := NewLearner(LearnerConfig{}, testCanon(t))

	rules := l.Learn(splitZipObservations())
	require.NotEmpty(t, rules)

	var streetRules []model.BoundaryRule
	for _, r := range rules {
		if r.RuleType == model.RuleStreetName {
			streetRules = append(streetRules, r)
		}
	}
	require.Len(t, streetRules, 2)

	byPattern := map[string]model.BoundaryRule{}
	for _, r := range streetRules {
		byPattern[r.Pattern] = r
	}

	maple, ok := byPattern["MAPLE STREET"]
	require.True(t, ok, "street spellings must collapse to one normalized pattern")
	assert.Equal(t, "Oncor", maple.UtilityName)
	assert.Equal(t, 3, maple.SampleCount)
	assert.InDelta(t, 1.0, maple.Confidence, 0.001)

	cedar := byPattern["CEDAR AVENUE"]
	assert.Equal(t, "TXU Energy", cedar.UtilityName)
}

func TestLearnSkipsSingleProviderZips(t *testing.T) {
	l := NewLearner(LearnerConfig{}, testCanon(t))

	rules := l.Learn([]model.Observation{
		obs("75202", "100 Elm St", "Elm St", "Oncor"),
		obs("75202", "102 Elm St", "Elm St", "Oncor"),
		obs("75202", "104 Elm St", "Elm St", "ONCOR ELECTRIC DELIVERY"),
	})
	assert.Empty(t, rules, "uncontested ZIPs need no boundary rules")
}

func TestLearnStreetAgreementThreshold(t *testing.T) {
	l := NewLearner(LearnerConfig{}, testCanon(t))

	// Maple St splits 2/1 (67%), below the 70% street threshold.
	rules := l.Learn([]model.Observation{
		obs("75201", "100 Maple St", "Maple St", "Oncor"),
		obs("75201", "102 Maple St", "Maple St", "Oncor"),
		obs("75201", "104 Maple St", "Maple St", "TXU Energy"),
	})
	for _, r := range rules {
		assert.NotEqual(t, model.RuleStreetName, r.RuleType,
			"a 67%% street must not produce a street_name rule")
	}
}

func TestLearnPrefixRules(t *testing.T) {
	l := NewLearner(LearnerConfig{}, testCanon(t))

	// N Lamar and S Lamar share the LAMA prefix after directional stripping.
	rules := l.Learn([]model.Observation{
		obs("78701", "100 N Lamar Blvd", "N Lamar Blvd", "Oncor"),
		obs("78701", "200 S Lamar Blvd", "S Lamar Blvd", "Oncor"),
		obs("78701", "300 N Lamar Blvd", "N Lamar Blvd", "Oncor"),
		obs("78701", "400 E Cesar Chavez St", "E Cesar Chavez St", "TXU Energy"),
	})

	var prefixRules []model.BoundaryRule
	for _, r := range rules {
		if r.RuleType == model.RuleStreetPrefix {
			prefixRules = append(prefixRules, r)
		}
	}
	require.Len(t, prefixRules, 1, "CESA has only 1 sample, below the prefix floor")
	assert.Equal(t, "LAMA", prefixRules[0].Pattern)
	assert.Equal(t, "Oncor", prefixRules[0].UtilityName)
	assert.Equal(t, 3, prefixRules[0].SampleCount)
}

func TestLearnNumberRangeRules(t *testing.T) {
	l := NewLearner(LearnerConfig{}, testCanon(t))

	// Main St below 1000 is Oncor, the 1000 block is TXU.
	rules := l.Learn([]model.Observation{
		obs("75201", "100 Main St", "Main St", "Oncor"),
		obs("75201", "200 Main St", "Main St", "Oncor"),
		obs("75201", "1100 Main St", "Main St", "TXU Energy"),
		obs("75201", "1200 Main St", "Main St", "TXU Energy"),
	})

	var rangeRules []model.BoundaryRule
	for _, r := range rules {
		if r.RuleType == model.RuleStreetNumberRange {
			rangeRules = append(rangeRules, r)
		}
	}
	require.Len(t, rangeRules, 2)

	byPattern := map[string]model.BoundaryRule{}
	for _, r := range rangeRules {
		byPattern[r.Pattern] = r
	}
	assert.Equal(t, "Oncor", byPattern["MAIN STREET:0-999"].UtilityName)
	assert.Equal(t, "TXU Energy", byPattern["MAIN STREET:1000-1999"].UtilityName)
}

func TestLearnIdempotent(t *testing.T) {
	l := NewLearner(LearnerConfig{}, testCanon(t))
	input := splitZipObservations()

	first := l.Learn(input)
	second := l.Learn(input)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Pattern, second[i].Pattern)
		assert.Equal(t, first[i].SampleCount, second[i].SampleCount)
		assert.Equal(t, first[i].Confidence, second[i].Confidence)
	}
}

func TestMatchRules(t *testing.T) {
	rules := []model.BoundaryRule{
		{ZipCode: "75201", RuleType: model.RuleStreetName, Pattern: "MAIN STREET", UtilityName: "Oncor", Confidence: 0.9},
		{ZipCode: "75201", RuleType: model.RuleStreetPrefix, Pattern: "MAIN", UtilityName: "Oncor", Confidence: 0.8},
		{ZipCode: "75201", RuleType: model.RuleStreetNumberRange, Pattern: "MAIN STREET:1000-1999", UtilityName: "TXU Energy", Confidence: 0.95},
		{ZipCode: "99999", RuleType: model.RuleStreetName, Pattern: "MAIN STREET", UtilityName: "Other", Confidence: 1.0},
	}

	matched := MatchRules(rules, "75201", "Main St", 1100)
	require.Len(t, matched, 3)
	assert.Equal(t, "TXU Energy", matched[0].UtilityName, "highest confidence first")
	assert.Equal(t, 0.9, matched[1].Confidence)

	// Unknown house number skips range rules.
	matched = MatchRules(rules, "75201", "Main St", -1)
	require.Len(t, matched, 2)

	// Unrelated street in the ZIP matches nothing.
	matched = MatchRules(rules, "75201", "Cedar Ave", 100)
	assert.Empty(t, matched)
}

func TestStreetPrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"N MAIN STREET", "MAIN"},
		{"SOUTH MAIN STREET", "MAIN"},
		{"MAIN STREET", "MAIN"},
		{"ELM", ""},
		{"NE LOOP 820", "LOOP"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StreetPrefix(tc.in), tc.in)
	}
}
