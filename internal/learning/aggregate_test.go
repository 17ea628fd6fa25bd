package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
)

func obs(zip, street, raw string, cat model.Category) model.Observation {
	return model.Observation{
		Address:         "123 " + street,
		ZipCode:         zip,
		Street:          street,
		State:           "TX",
		Category:        cat,
		RawProviderName: raw,
		ReportedAt:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidateCategory(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		category model.Category
		valid    bool
	}{
		{"gas name under electric", "Atmos Gas Delivery", model.CategoryElectric, false},
		{"electric name under gas", "Oncor Electric Delivery", model.CategoryGas, false},
		{"water name under electric", "Dallas Water Utilities", model.CategoryElectric, false},
		{"matching indicator", "Oncor Electric Delivery", model.CategoryElectric, true},
		{"both indicators present", "Baltimore Gas and Electric", model.CategoryElectric, true},
		{"no indicator at all", "Atmos Energy", model.CategoryElectric, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateCategory(tt.raw, tt.category)
			assert.Equal(t, tt.valid, ok)
			if !ok {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestAggregatorBuild(t *testing.T) {
	canon, err := provider.New()
	require.NoError(t, err)
	a := NewAggregator(canon)

	observations := []model.Observation{
		obs("75201", "Main St", "TXU", model.CategoryElectric),
		obs("75201", "Main Street", "TXU Energy Retail Co", model.CategoryElectric),
		obs("75201", "Main St.", "Oncor", model.CategoryElectric),
		obs("75201", "Elm Ave", "Oncor Electric Delivery", model.CategoryElectric),
		// Category mismatch: excluded, audited.
		obs("75201", "Main St", "Dallas Water Utilities", model.CategoryElectric),
		// Missing location: counted, skipped.
		obs("", "Main St", "TXU", model.CategoryElectric),
	}

	aggs, stats := a.Build(observations)

	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 4, stats.Valid)
	assert.Equal(t, 1, stats.CategoryMismatch)
	assert.Equal(t, 1, stats.MissingLocation)
	require.Len(t, stats.Audit, 1)
	assert.Contains(t, stats.Audit[0].Reason, "water")

	// Street spellings collapse onto one group.
	require.Len(t, aggs, 2)
	main := aggs[1]
	assert.Equal(t, "MAIN STREET", main.Street)
	assert.Equal(t, 3, main.SampleCount())
	assert.Equal(t, 2, main.Counts["TXU Energy"])
	assert.Equal(t, 1, main.Counts["Oncor"])

	elm := aggs[0]
	assert.Equal(t, "ELM AVENUE", elm.Street)
	dominant, rate := elm.Dominant()
	assert.Equal(t, "Oncor", dominant)
	assert.InDelta(t, 1.0, rate, 0.001)
}

// Rebuilding over the same input must produce identical output.
func TestAggregatorDeterministic(t *testing.T) {
	canon, err := provider.New()
	require.NoError(t, err)
	a := NewAggregator(canon)

	observations := []model.Observation{
		obs("75201", "Main St", "TXU", model.CategoryElectric),
		obs("75202", "Oak Ln", "Reliant", model.CategoryElectric),
		obs("75201", "Main St", "Oncor", model.CategoryElectric),
	}

	first, _ := a.Build(observations)
	second, _ := a.Build(observations)
	assert.Equal(t, first, second)
}

func TestNormalizeStreet(t *testing.T) {
	assert.Equal(t, "MAIN STREET", NormalizeStreet(" Main St. "))
	assert.Equal(t, "ELM AVENUE", NormalizeStreet("Elm Ave"))
	assert.Equal(t, "NORTH OAK BOULEVARD", NormalizeStreet("North Oak Blvd"))
	assert.Equal(t, "MAIN STREET", NormalizeStreet("MAIN STREET"))
}
