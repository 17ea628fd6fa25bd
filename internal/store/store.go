// Package store persists observations, corrections, and learned rules behind
// a driver-agnostic interface with sqlite and postgres backends.
package store

import (
	"context"

	"github.com/sells-group/utility-cli/internal/model"
)

// ObservationFilter specifies criteria for listing observations.
type ObservationFilter struct {
	ZipCode  string         `json:"zip_code,omitempty"`
	Category model.Category `json:"category,omitempty"`
	Limit    int            `json:"limit,omitempty"`
}

// CorrectionFilter specifies criteria for listing corrections.
type CorrectionFilter struct {
	Status  model.CorrectionStatus `json:"status,omitempty"`
	State   string                 `json:"state,omitempty"`
	ZipCode string                 `json:"zip_code,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the attribution pipeline.
type Store interface {
	// Observations
	InsertObservations(ctx context.Context, observations []model.Observation) (int, error)
	ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error)

	// Corrections. ConfirmCorrection must be atomic: it increments the
	// confirmation count and promotes pending rows that reach the threshold
	// in a single statement, so concurrent submissions cannot double-insert
	// or miss a promotion.
	GetCorrectionByKey(ctx context.Context, key model.NaturalKey) (*model.Correction, error)
	GetCorrection(ctx context.Context, id string) (*model.Correction, error)
	CreateCorrection(ctx context.Context, c *model.Correction) error
	ConfirmCorrection(ctx context.Context, id string, threshold int) (*model.Correction, error)
	UpdateCorrectionStatus(ctx context.Context, id string, status model.CorrectionStatus) error
	SetCorrectionEvidence(ctx context.Context, id string, confidence int, note string) error
	ListCorrections(ctx context.Context, filter CorrectionFilter) ([]model.Correction, error)
	AppendConfirmation(ctx context.Context, c model.Confirmation) error
	ListConfirmations(ctx context.Context, correctionID string) ([]model.Confirmation, error)

	// Verified utilities (simple confirmation counter, separate lifecycle)
	IncrementVerified(ctx context.Context, v model.VerifiedUtility) error
	ListVerified(ctx context.Context, zipCode string, category model.Category) ([]model.VerifiedUtility, error)

	// Boundary rules, upserted by (zip_code, rule_type, pattern)
	UpsertBoundaryRules(ctx context.Context, rules []model.BoundaryRule) error
	ListBoundaryRules(ctx context.Context, zipCode string) ([]model.BoundaryRule, error)

	// Learned override/context tables, replaced wholesale per learning run
	// with no partial-write visibility.
	ReplaceOverrides(ctx context.Context, overrides []model.Override) error
	ListOverrides(ctx context.Context) ([]model.Override, error)
	ReplaceZipContexts(ctx context.Context, contexts []model.ZipContext) error
	ListZipContexts(ctx context.Context) ([]model.ZipContext, error)

	// Lifecycle
	Counts(ctx context.Context) (map[string]int64, error)
	Migrate(ctx context.Context) error
	Close() error
}
