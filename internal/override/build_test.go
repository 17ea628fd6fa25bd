package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
)

func agg(zip, street string, counts map[string]int) model.LocationAggregate {
	return model.LocationAggregate{
		ZipCode:  zip,
		Street:   street,
		Category: model.CategoryElectric,
		Counts:   counts,
	}
}

func TestBuildOverridesOnlyHardTiers(t *testing.T) {
	aggregates := []model.LocationAggregate{
		// 12 unanimous samples: hard_override at 0.99.
		agg("75201", "MAIN STREET", map[string]int{"Oncor": 12}),
		// 6 samples at 100%: hard_override at 0.90.
		agg("75201", "OAK AVENUE", map[string]int{"TXU Energy": 6}),
		// 3 samples at 100%: ai_boost, no override row.
		agg("75201", "CEDAR AVENUE", map[string]int{"Oncor": 3}),
		// Single sample: store_only.
		agg("75201", "PINE ROAD", map[string]int{"TXU Energy": 1}),
	}

	overrides, contexts := Build(aggregates, nil)

	require.Len(t, overrides, 2)
	assert.Equal(t, "MAIN STREET", overrides[0].Street)
	assert.Equal(t, 0.99, overrides[0].Confidence)
	assert.Equal(t, "OAK AVENUE", overrides[1].Street)
	assert.Equal(t, 0.90, overrides[1].Confidence)

	require.Len(t, contexts, 1)
	ctx := contexts[0]
	assert.Equal(t, []string{"Oncor", "TXU Energy"}, ctx.ObservedProviders)
	assert.True(t, ctx.IsSplitTerritory)
	require.Len(t, ctx.Patterns, 1, "only the ai_boost street becomes a pattern")
	assert.Contains(t, ctx.Patterns[0], "CEDAR AVENUE")
	assert.Contains(t, ctx.ContextText, "split territory")
}

func TestBuildSingleProviderZip(t *testing.T) {
	overrides, contexts := Build([]model.LocationAggregate{
		agg("75202", "ELM STREET", map[string]int{"Oncor": 12}),
	}, nil)

	require.Len(t, overrides, 1)
	require.Len(t, contexts, 1)
	assert.False(t, contexts[0].IsSplitTerritory)
	assert.Contains(t, contexts[0].ContextText, "single observed electric provider")
}

func TestBuildIncludesRulePatterns(t *testing.T) {
	rules := []model.BoundaryRule{{
		ZipCode:     "75201",
		Category:    model.CategoryElectric,
		RuleType:    model.RuleLatitude,
		Pattern:     "north_of:32.79000",
		UtilityName: "Oncor",
		Confidence:  0.95,
		SampleCount: 20,
	}}

	_, contexts := Build([]model.LocationAggregate{
		agg("75201", "MAIN STREET", map[string]int{"Oncor": 8, "TXU Energy": 3}),
	}, rules)

	require.Len(t, contexts, 1)
	require.NotEmpty(t, contexts[0].Patterns)
	assert.Contains(t, contexts[0].Patterns[0], "north_of:32.79000")
}

func TestBuildDeterministic(t *testing.T) {
	aggregates := []model.LocationAggregate{
		agg("75201", "MAIN STREET", map[string]int{"Oncor": 12}),
		agg("75201", "OAK AVENUE", map[string]int{"TXU Energy": 6}),
		agg("60601", "STATE STREET", map[string]int{"ComEd": 10}),
	}

	o1, c1 := Build(aggregates, nil)
	o2, c2 := Build(aggregates, nil)
	assert.Equal(t, o1, o2)
	assert.Equal(t, c1, c2)
	assert.Equal(t, "60601", o1[0].ZipCode, "output sorted by zip")
}
