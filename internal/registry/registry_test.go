package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/override"
	"github.com/sells-group/utility-cli/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return New(s, override.DefaultLookupConfig()), s
}

func TestEmptySnapshotFailsClosed(t *testing.T) {
	r, _ := newTestRegistry(t)

	assert.Nil(t, r.CheckOverride("75201", "Main St", model.CategoryElectric))
	assert.Nil(t, r.Context("75201", model.CategoryElectric))
	assert.Nil(t, r.NeighborConsensus(32.78, -96.80, model.CategoryElectric))
	assert.True(t, r.LoadedAt().IsZero())
}

func TestLoadSwapsSnapshot(t *testing.T) {
	r, s := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceOverrides(ctx, []model.Override{{
		ZipCode:     "75201",
		Street:      "MAIN STREET",
		Category:    model.CategoryElectric,
		Provider:    "Oncor",
		Confidence:  0.99,
		SampleCount: 12,
		Action:      model.ActionHardOverride,
	}}))
	require.NoError(t, s.ReplaceZipContexts(ctx, []model.ZipContext{{
		ZipCode:           "75201",
		Category:          model.CategoryElectric,
		ObservedProviders: []string{"Oncor"},
		Patterns:          []string{},
		ContextText:       "ZIP 75201 has a single observed electric provider: Oncor.",
	}}))

	require.NoError(t, r.Load(ctx, nil))
	assert.False(t, r.LoadedAt().IsZero())

	m := r.CheckOverride("75201", "Main St", model.CategoryElectric)
	require.NotNil(t, m)
	assert.Equal(t, "Oncor", m.Provider)

	c := r.Context("75201", model.CategoryElectric)
	require.NotNil(t, c)
	assert.Equal(t, []string{"Oncor"}, c.ObservedProviders)

	// A rebuild that drops the override is visible after the next Load.
	require.NoError(t, s.ReplaceOverrides(ctx, nil))
	require.NoError(t, r.Load(ctx, nil))
	assert.Nil(t, r.CheckOverride("75201", "Main St", model.CategoryElectric))
}
