// Package registry owns the in-memory serving snapshot of the learned
// tables. The store is read once per rebuild; between rebuilds every query
// hits an immutable snapshot, so readers never see a partial write.
package registry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/override"
	"github.com/sells-group/utility-cli/internal/store"
)

// Registry serves lookup queries from an atomically swapped snapshot.
type Registry struct {
	store  store.Store
	cfg    override.LookupConfig
	lookup atomic.Pointer[override.Lookup]
	loaded atomic.Int64 // unix seconds of the last successful load
}

func New(st store.Store, cfg override.LookupConfig) *Registry {
	r := &Registry{store: st, cfg: cfg}
	// Empty snapshot until the first load; queries fail closed against it.
	r.lookup.Store(override.NewLookup(cfg, nil, nil, nil))
	return r
}

// Load reads the learned tables and swaps them in. points feed neighbor
// consensus; pass nil when no geocoded snapshot is available.
func (r *Registry) Load(ctx context.Context, points []model.GeoPoint) error {
	start := time.Now()

	overrides, err := r.store.ListOverrides(ctx)
	if err != nil {
		return eris.Wrap(err, "registry: load overrides")
	}
	contexts, err := r.store.ListZipContexts(ctx)
	if err != nil {
		return eris.Wrap(err, "registry: load contexts")
	}

	r.lookup.Store(override.NewLookup(r.cfg, overrides, contexts, points))
	r.loaded.Store(time.Now().Unix())

	zap.L().Info("registry loaded",
		zap.Int("overrides", len(overrides)),
		zap.Int("contexts", len(contexts)),
		zap.Int("points", len(points)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// CheckOverride resolves a street-level override against the current
// snapshot.
func (r *Registry) CheckOverride(zipCode, street string, category model.Category) *override.Match {
	return r.lookup.Load().CheckOverride(zipCode, street, category)
}

// Context returns the ZIP context, or nil.
func (r *Registry) Context(zipCode string, category model.Category) *model.ZipContext {
	return r.lookup.Load().Context(zipCode, category)
}

// NeighborConsensus votes among verified points near the coordinate.
func (r *Registry) NeighborConsensus(lat, lon float64, category model.Category) *override.Consensus {
	return r.lookup.Load().NeighborConsensus(lat, lon, category)
}

// LoadedAt reports when the snapshot was last refreshed; zero time means the
// registry is still serving the empty startup snapshot.
func (r *Registry) LoadedAt() time.Time {
	sec := r.loaded.Load()
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
