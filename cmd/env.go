package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/ingest"
	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/override"
	"github.com/sells-group/utility-cli/internal/provider"
	"github.com/sells-group/utility-cli/internal/store"
	"github.com/sells-group/utility-cli/pkg/geocode"
)

// openStore builds the configured store backend. Callers own Close.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newCanonicalizer() (*provider.Canonicalizer, error) {
	canon, err := provider.New()
	if err != nil {
		return nil, eris.Wrap(err, "build canonicalizer")
	}
	return canon, nil
}

// lookupConfig maps the configured thresholds onto the runtime lookup.
func lookupConfig() override.LookupConfig {
	return override.LookupConfig{
		FuzzyDiscount:    cfg.Lookup.FuzzyDiscount,
		MinSharedPrefix:  cfg.Lookup.MinSharedPrefix,
		NeighborRadiusMi: cfg.Lookup.NeighborRadiusMi,
		NeighborMinVotes: cfg.Lookup.NeighborMinVotes,
		NeighborMajority: cfg.Lookup.NeighborMajority,
	}
}

// loadLookupPoints loads the geocoded snapshot that feeds neighbor consensus.
// Returns nil, leaving the consensus rung disabled, when no snapshot is
// configured.
func loadLookupPoints(ctx context.Context, canon *provider.Canonicalizer) ([]model.GeoPoint, error) {
	if cfg.Lookup.PointsSnapshot == "" {
		return nil, nil
	}

	zips, err := ingest.NewGeoLoader(geocode.New(cfg.Geocode.RPS), canon).Load(ctx, cfg.Lookup.PointsSnapshot)
	if err != nil {
		return nil, err
	}

	var points []model.GeoPoint
	for _, z := range zips {
		points = append(points, z.Points...)
	}
	zap.L().Info("lookup points loaded",
		zap.String("source", cfg.Lookup.PointsSnapshot),
		zap.Int("points", len(points)))
	return points, nil
}
