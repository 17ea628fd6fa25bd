package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestObservationsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obs := []model.Observation{
		{
			Address:         "123 Main St, Houston, TX 77002",
			ZipCode:         "77002",
			Street:          "MAIN STREET",
			City:            "Houston",
			State:           "TX",
			Category:        model.CategoryElectric,
			RawProviderName: "TXU ENERGY",
			ReportedAt:      time.Now().UTC(),
		},
		{
			Address:         "456 Oak Ave, Houston, TX 77002",
			ZipCode:         "77002",
			Street:          "OAK AVENUE",
			City:            "Houston",
			State:           "TX",
			Category:        model.CategoryGas,
			RawProviderName: "CENTERPOINT ENERGY",
			ReportedAt:      time.Now().UTC(),
		},
	}

	n, err := s.InsertObservations(ctx, obs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.ListObservations(ctx, ObservationFilter{ZipCode: "77002", Category: model.CategoryElectric})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TXU ENERGY", got[0].RawProviderName)
	assert.NotEmpty(t, got[0].ID)
}

func TestConfirmCorrectionPromotesAtThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Correction{
		UtilityType:       model.CategoryElectric,
		CorrectProvider:   "Oncor",
		CanonicalProvider: "ONCOR",
		State:             "TX",
		ZipCode:           "75201",
	}
	require.NoError(t, s.CreateCorrection(ctx, c))
	assert.Equal(t, model.CorrectionPending, c.Status)
	assert.Equal(t, 1, c.ConfirmationCount)

	// Second submission keeps it pending.
	got, err := s.ConfirmCorrection(ctx, c.ID, model.VerifyThreshold)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ConfirmationCount)
	assert.Equal(t, model.CorrectionPending, got.Status)
	assert.Nil(t, got.VerifiedAt)

	// Third submission promotes.
	got, err = s.ConfirmCorrection(ctx, c.ID, model.VerifyThreshold)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ConfirmationCount)
	assert.Equal(t, model.CorrectionVerified, got.Status)
	require.NotNil(t, got.VerifiedAt)

	// Further confirmations keep the verified timestamp.
	first := *got.VerifiedAt
	got, err = s.ConfirmCorrection(ctx, c.ID, model.VerifyThreshold)
	require.NoError(t, err)
	assert.Equal(t, 4, got.ConfirmationCount)
	assert.Equal(t, model.CorrectionVerified, got.Status)
	assert.Equal(t, first, *got.VerifiedAt)
}

func TestGetCorrectionByKeySkipsRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := model.NaturalKey{
		UtilityType:       model.CategoryWater,
		State:             "OH",
		ZipCode:           "43004",
		CanonicalProvider: "AQUA OHIO",
	}

	c := &model.Correction{
		UtilityType:       key.UtilityType,
		CorrectProvider:   "Aqua Ohio",
		CanonicalProvider: key.CanonicalProvider,
		State:             key.State,
		ZipCode:           key.ZipCode,
	}
	require.NoError(t, s.CreateCorrection(ctx, c))

	got, err := s.GetCorrectionByKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	require.NoError(t, s.UpdateCorrectionStatus(ctx, c.ID, model.CorrectionRejected))

	got, err = s.GetCorrectionByKey(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "rejected rows must not satisfy key lookups")
}

func TestSetCorrectionEvidence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Correction{
		UtilityType:       model.CategoryGas,
		CorrectProvider:   "Columbia Gas",
		CanonicalProvider: "COLUMBIA GAS",
		State:             "PA",
		ZipCode:           "15201",
	}
	require.NoError(t, s.CreateCorrection(ctx, c))

	require.NoError(t, s.SetCorrectionEvidence(ctx, c.ID, 85, "single positive signal"))

	got, err := s.GetCorrection(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EvidenceConfidence)
	assert.Equal(t, 85, *got.EvidenceConfidence)
	assert.Equal(t, "single positive signal", got.EvidenceNote)
	assert.Equal(t, model.CorrectionPending, got.Status, "evidence must not change status")

	err = s.SetCorrectionEvidence(ctx, "no-such-id", 70, "")
	assert.Error(t, err)
}

func TestConfirmations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Correction{
		UtilityType:       model.CategoryElectric,
		CorrectProvider:   "ComEd",
		CanonicalProvider: "COMED",
		State:             "IL",
		ZipCode:           "60601",
	}
	require.NoError(t, s.CreateCorrection(ctx, c))

	for _, addr := range []string{"1 State St", "2 State St"} {
		require.NoError(t, s.AppendConfirmation(ctx, model.Confirmation{
			CorrectionID: c.ID,
			Address:      addr,
			Source:       "api",
		}))
	}

	got, err := s.ListConfirmations(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1 State St", got[0].Address)
}

func TestIncrementVerified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := model.VerifiedUtility{
		UtilityType:  model.CategoryElectric,
		ProviderName: "DUKE ENERGY",
		State:        "NC",
		ZipCode:      "27601",
	}
	require.NoError(t, s.IncrementVerified(ctx, v))
	require.NoError(t, s.IncrementVerified(ctx, v))

	got, err := s.ListVerified(ctx, "27601", model.CategoryElectric)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].VerificationCount)
}

func TestUpsertBoundaryRulesIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rule := model.BoundaryRule{
		ZipCode:     "75001",
		State:       "TX",
		UtilityName: "ONCOR",
		Category:    model.CategoryElectric,
		RuleType:    model.RuleStreetName,
		Pattern:     "MAIN STREET",
		Confidence:  0.82,
		SampleCount: 11,
	}
	require.NoError(t, s.UpsertBoundaryRules(ctx, []model.BoundaryRule{rule}))

	// Re-running with updated confidence must overwrite, not duplicate.
	rule.Confidence = 0.91
	rule.SampleCount = 15
	require.NoError(t, s.UpsertBoundaryRules(ctx, []model.BoundaryRule{rule}))

	got, err := s.ListBoundaryRules(ctx, "75001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.91, got[0].Confidence)
	assert.Equal(t, 15, got[0].SampleCount)
}

func TestReplaceOverrides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []model.Override{
		{ZipCode: "75001", Street: "MAIN STREET", Category: model.CategoryElectric, Provider: "ONCOR", Confidence: 0.99, SampleCount: 12, Action: model.ActionHardOverride},
		{ZipCode: "75001", Street: "OAK AVENUE", Category: model.CategoryElectric, Provider: "TXU ENERGY", Confidence: 0.90, SampleCount: 6, Action: model.ActionHardOverride},
	}
	require.NoError(t, s.ReplaceOverrides(ctx, first))

	second := []model.Override{
		{ZipCode: "75001", Street: "MAIN STREET", Category: model.CategoryElectric, Provider: "ONCOR", Confidence: 0.99, SampleCount: 14, Action: model.ActionHardOverride},
	}
	require.NoError(t, s.ReplaceOverrides(ctx, second))

	got, err := s.ListOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "replace must drop rows absent from the new run")
	assert.Equal(t, 14, got[0].SampleCount)
}

func TestReplaceZipContexts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	contexts := []model.ZipContext{
		{
			ZipCode:           "75001",
			Category:          model.CategoryElectric,
			ObservedProviders: []string{"ONCOR", "TXU ENERGY"},
			Patterns:          []string{"street MAIN STREET -> ONCOR"},
			IsSplitTerritory:  true,
			ContextText:       "ZIP 75001 is split between ONCOR and TXU ENERGY.",
		},
	}
	require.NoError(t, s.ReplaceZipContexts(ctx, contexts))

	got, err := s.ListZipContexts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsSplitTerritory)
	assert.Equal(t, []string{"ONCOR", "TXU ENERGY"}, got[0].ObservedProviders)
	assert.Len(t, got[0].Patterns, 1)
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertObservations(ctx, []model.Observation{{
		Address: "1 Elm St", ZipCode: "10001", Street: "ELM STREET",
		Category: model.CategoryWater, RawProviderName: "NYC DEP", ReportedAt: time.Now().UTC(),
	}})
	require.NoError(t, err)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["observations"])
	assert.Equal(t, int64(0), counts["corrections"])
}
