// Package model defines the entities shared across the attribution pipeline.
package model

import "time"

// Category identifies a utility category.
type Category string

const (
	CategoryElectric Category = "electric"
	CategoryGas      Category = "gas"
	CategoryWater    Category = "water"
)

// AllCategories returns every valid utility category.
func AllCategories() []Category {
	return []Category{CategoryElectric, CategoryGas, CategoryWater}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryElectric, CategoryGas, CategoryWater:
		return true
	}
	return false
}

// Observation is the atomic unit of ground truth: one tenant record reporting
// a provider for an address. Observations are never mutated after ingestion.
type Observation struct {
	ID              string    `json:"id"`
	Address         string    `json:"address"`
	ZipCode         string    `json:"zip_code"`
	Street          string    `json:"street"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	Category        Category  `json:"category"`
	RawProviderName string    `json:"raw_provider_name"`
	ReportedAt      time.Time `json:"reported_at"`
}

// GeoPoint is a geocoded observation used by a single boundary-analysis run.
type GeoPoint struct {
	Lat                 float64  `json:"lat"`
	Lon                 float64  `json:"lon"`
	Address             string   `json:"address"`
	ReportedProvider    string   `json:"reported_provider"`
	IndependentProvider string   `json:"independent_provider,omitempty"`
	AgreesWithLookup    *bool    `json:"agrees_with_lookup,omitempty"`
	Category            Category `json:"category"`
}

// LocationAggregate groups observations sharing a (zip, street) key within one
// category. Rebuilt from scratch on each learning run.
type LocationAggregate struct {
	ZipCode  string         `json:"zip_code"`
	Street   string         `json:"street"`
	Category Category       `json:"category"`
	Counts   map[string]int `json:"counts"` // canonical name → count
}

// SampleCount returns the total observation count in the aggregate.
func (a LocationAggregate) SampleCount() int {
	total := 0
	for _, n := range a.Counts {
		total += n
	}
	return total
}

// Dominant returns the most frequent canonical provider and its agreement
// rate. Ties break lexicographically so the result is deterministic.
func (a LocationAggregate) Dominant() (string, float64) {
	total := a.SampleCount()
	if total == 0 {
		return "", 0
	}
	var best string
	bestN := -1
	for name, n := range a.Counts {
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	return best, float64(bestN) / float64(total)
}
