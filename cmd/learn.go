package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/boundary"
	"github.com/sells-group/utility-cli/internal/learning"
	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/override"
	"github.com/sells-group/utility-cli/internal/store"
	"github.com/sells-group/utility-cli/pkg/notion"
)

var learnExportFlagged bool

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Rebuild overrides, AI context, and boundary rules from observations",
	Long:  "Aggregates all observations by (zip, street), runs the confidence ladder, mines street/prefix/range boundary rules, and replaces the published override and context tables.",
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

		observations, err := st.ListObservations(ctx, store.ObservationFilter{})
		if err != nil {
			return err
		}

		aggregates, stats := learning.NewAggregator(canon).Build(observations)
		zap.L().Info("aggregation complete",
			zap.Int("observations", len(observations)),
			zap.Int("aggregates", len(aggregates)),
			zap.Int("category_mismatch", stats.CategoryMismatch),
			zap.Int("missing_location", stats.MissingLocation),
		)

		learner := boundary.NewLearner(boundary.LearnerConfig{
			MinStreetAgreement: cfg.Learning.MinStreetAgreement,
			MinPrefixAgreement: cfg.Learning.MinPrefixAgreement,
			MinPrefixSamples:   cfg.Learning.MinPrefixSamples,
			MinRangeAgreement:  cfg.Learning.MinRangeAgreement,
		}, canon)

		rules := learner.Learn(observations)
		if err := st.UpsertBoundaryRules(ctx, rules); err != nil {
			return err
		}

		overrides, contexts := override.Build(aggregates, rules)
		if err := st.ReplaceOverrides(ctx, overrides); err != nil {
			return err
		}
		if err := st.ReplaceZipContexts(ctx, contexts); err != nil {
			return err
		}

		zap.L().Info("learning run complete",
			zap.Int("boundary_rules", len(rules)),
			zap.Int("overrides", len(overrides)),
			zap.Int("zip_contexts", len(contexts)),
		)

		if learnExportFlagged {
			return exportFlagged(cmd, aggregates)
		}
		return nil
	},
}

// exportFlagged pushes flag_review aggregates to the Notion review database.
func exportFlagged(cmd *cobra.Command, aggregates []model.LocationAggregate) error {
	if cfg.Notion.Token == "" || cfg.Notion.ReviewDB == "" {
		zap.L().Warn("notion export requested but token or review_db not configured")
		return nil
	}

	var flagged []model.LocationAggregate
	for _, agg := range aggregates {
		if learning.Score(agg).Action == model.ActionFlagReview {
			flagged = append(flagged, agg)
		}
	}

	nc := notion.NewClient(cfg.Notion.Token)
	created, err := notion.ExportFlagged(cmd.Context(), nc, cfg.Notion.ReviewDB, flagged)
	if err != nil {
		return err
	}

	zap.L().Info("flagged locations exported",
		zap.Int("flagged", len(flagged)),
		zap.Int("created", created),
	)
	return nil
}

func init() {
	learnCmd.Flags().BoolVar(&learnExportFlagged, "export-flagged", false, "export flag_review locations to the Notion review database")
	rootCmd.AddCommand(learnCmd)
}
