package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/utility-cli/internal/disambiguate"
	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/registry"
	"github.com/sells-group/utility-cli/pkg/anthropic"
)

var (
	resolveZip      string
	resolveStreet   string
	resolveCity     string
	resolveState    string
	resolveCategory string
	resolveLat      float64
	resolveLon      float64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the provider for one address",
	Long:  "Checks the hard-override table first, then asks the disambiguator using the learned ZIP context for split territories, then falls back to nearest-neighbor consensus when coordinates are given. Prints nothing conclusive when no source answers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		category := model.Category(resolveCategory)
		if !category.Valid() {
			return fmt.Errorf("invalid category %q", resolveCategory)
		}

		canon, err := newCanonicalizer()
		if err != nil {
			return err
		}

		points, err := loadLookupPoints(ctx, canon)
		if err != nil {
			return err
		}

		reg := registry.New(st, lookupConfig())
		if err := reg.Load(ctx, points); err != nil {
			return err
		}

		if match := reg.CheckOverride(resolveZip, resolveStreet, category); match != nil {
			kind := "exact"
			if match.Fuzzy {
				kind = "fuzzy"
			}
			fmt.Printf("override (%s): %s confidence=%.2f samples=%d\n",
				kind, match.Provider, match.Confidence, match.SampleCount)
			return nil
		}

		consensus := func() bool {
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
				return false
			}
			c := reg.NeighborConsensus(resolveLat, resolveLon, category)
			if c == nil {
				return false
			}
			fmt.Printf("consensus: %s agreement=%.2f samples=%d\n",
				c.Provider, c.Agreement, c.Samples)
			return true
		}

		zc := reg.Context(resolveZip, category)
		if zc == nil {
			if consensus() {
				return nil
			}
			fmt.Println("no override, context, or consensus for this location")
			return nil
		}

		if cfg.Anthropic.Key != "" {
			d := disambiguate.New(anthropic.NewClient(cfg.Anthropic.Key), canon, cfg.Anthropic.Model)
			verdict, err := d.Resolve(ctx, disambiguate.Input{
				Address:  resolveStreet,
				ZipCode:  resolveZip,
				City:     resolveCity,
				State:    resolveState,
				Category: category,
				Context:  zc,
			})
			if err != nil {
				return err
			}
			if verdict != nil && verdict.Provider != "" {
				fmt.Printf("disambiguated: %s confidence=%.2f (%s)\n",
					verdict.Provider, verdict.Confidence, verdict.Reasoning)
				return nil
			}
		}

		if consensus() {
			return nil
		}
		fmt.Printf("context: %s\n", zc.ContextText)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveZip, "zip", "", "5-digit ZIP code")
	resolveCmd.Flags().StringVar(&resolveStreet, "street", "", "street address")
	resolveCmd.Flags().StringVar(&resolveCity, "city", "", "city")
	resolveCmd.Flags().StringVar(&resolveState, "state", "", "two-letter state")
	resolveCmd.Flags().StringVar(&resolveCategory, "category", "electric", "utility category")
	resolveCmd.Flags().Float64Var(&resolveLat, "lat", 0, "latitude for neighbor consensus")
	resolveCmd.Flags().Float64Var(&resolveLon, "lon", 0, "longitude for neighbor consensus")
	_ = resolveCmd.MarkFlagRequired("zip")
	_ = resolveCmd.MarkFlagRequired("street")
	rootCmd.AddCommand(resolveCmd)
}
