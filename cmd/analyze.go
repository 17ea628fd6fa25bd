package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/boundary"
	"github.com/sells-group/utility-cli/internal/ingest"
	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/territory"
	"github.com/sells-group/utility-cli/pkg/geocode"
)

var analyzeShapefile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <geocoded-snapshot>",
	Short: "Find geographic provider boundaries inside split ZIP codes",
	Long:  "Loads a geocoded observation snapshot, tests each multi-provider ZIP for a latitude or longitude separating line, validates a sample against the service-territory shapefile when available, and upserts the resulting boundary rules.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		canon, err := newCanonicalizer()
		if err != nil {
			return err
		}

		var lookup boundary.Lookuper
		shapefile := analyzeShapefile
		if shapefile == "" {
			shapefile = cfg.Territory.ShapefilePath
		}
		if shapefile != "" {
			idx, err := territory.Load(territory.Config{
				Path:       shapefile,
				NameField:  cfg.Territory.NameField,
				StateField: cfg.Territory.StateField,
			})
			if err != nil {
				return err
			}
			zap.L().Info("territory index loaded", zap.Int("territories", idx.Size()))
			lookup = idx
		}

		loader := ingest.NewGeoLoader(geocode.New(cfg.Geocode.RPS), canon)
		zips, err := loader.Load(ctx, args[0])
		if err != nil {
			return err
		}

		analyzer := boundary.NewAnalyzer(boundary.AnalyzerConfig{
			MinPoints:      cfg.Boundary.MinPoints,
			MeanGapDegrees: cfg.Boundary.MeanGapDegrees,
			DominanceRatio: cfg.Boundary.DominanceRatio,
			Workers:        cfg.Boundary.Workers,
			ValidateSample: cfg.Boundary.ValidateSample,
		}, canon, lookup)

		analyses, err := analyzer.Analyze(ctx, zips)
		if err != nil {
			return err
		}

		var rules []model.BoundaryRule
		splits := 0
		for _, a := range analyses {
			if a.Split != nil {
				splits++
				rules = append(rules, boundary.SplitRules(a)...)
			}
		}

		if err := st.UpsertBoundaryRules(ctx, rules); err != nil {
			return err
		}

		zap.L().Info("boundary analysis complete",
			zap.Int("zips", len(zips)),
			zap.Int("splits", splits),
			zap.Int("rules", len(rules)),
		)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeShapefile, "shapefile", "", "service-territory shapefile for validation (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}
