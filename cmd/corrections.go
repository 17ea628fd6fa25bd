package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/correction"
	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/store"
	"github.com/sells-group/utility-cli/internal/verify"
	"github.com/sells-group/utility-cli/pkg/jina"
	"github.com/sells-group/utility-cli/pkg/notion"
)

var (
	submitCategory  string
	submitProvider  string
	submitIncorrect string
	submitState     string
	submitZip       string
	submitCity      string
	submitStreet    string
	verifyLimit     int
	listStatus      string
	listLimit       int
)

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Manage crowd-sourced provider corrections",
}

var correctionsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a correction claim",
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

		res, err := correction.NewWorkflow(st, canon).Submit(ctx, correction.SubmitRequest{
			UtilityType:       model.Category(submitCategory),
			CorrectProvider:   submitProvider,
			IncorrectProvider: submitIncorrect,
			State:             submitState,
			ZipCode:           submitZip,
			City:              submitCity,
			Street:            submitStreet,
			Source:            "cli",
		})
		if err != nil {
			return err
		}

		fmt.Printf("correction %s: status=%s confirmations=%d\n",
			res.Correction.ID, res.Correction.Status, res.Correction.ConfirmationCount)
		return nil
	},
}

var correctionsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Manually verify a correction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkflow(cmd, func(wf *correction.Workflow) error {
			return wf.Approve(cmd.Context(), args[0])
		})
	},
}

var correctionsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a correction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkflow(cmd, func(wf *correction.Workflow) error {
			return wf.Reject(cmd.Context(), args[0])
		})
	},
}

var correctionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List corrections",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		corrections, err := st.ListCorrections(ctx, store.CorrectionFilter{
			Status: model.CorrectionStatus(listStatus),
			Limit:  listLimit,
		})
		if err != nil {
			return err
		}

		for _, c := range corrections {
			evidence := "-"
			if c.EvidenceConfidence != nil {
				evidence = fmt.Sprintf("%d", *c.EvidenceConfidence)
			}
			fmt.Printf("%s  %-8s  %-8s  %s %s  %s  confirmations=%d evidence=%s\n",
				c.ID, c.Status, c.UtilityType, c.State, c.ZipCode, c.CanonicalProvider, c.ConfirmationCount, evidence)
		}
		return nil
	},
}

var correctionsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Annotate pending corrections with search evidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		search := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.SearchBaseURL))
		verifier := verify.New(search, st, cfg.Jina.RPS, time.Duration(cfg.Jina.TimeoutSecs)*time.Second)

		n, err := verifier.VerifyPending(ctx, verifyLimit)
		if err != nil {
			return err
		}

		zap.L().Info("evidence verification complete", zap.Int("annotated", n))
		return nil
	},
}

var correctionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pending corrections to the Notion review database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" || cfg.Notion.ReviewDB == "" {
			return fmt.Errorf("notion token and review_db must be configured")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pending, err := st.ListCorrections(ctx, store.CorrectionFilter{Status: model.CorrectionPending})
		if err != nil {
			return err
		}

		nc := notion.NewClient(cfg.Notion.Token)
		created, err := notion.ExportCorrections(ctx, nc, cfg.Notion.ReviewDB, pending)
		if err != nil {
			return err
		}

		fmt.Printf("exported %d of %d pending corrections\n", created, len(pending))
		return nil
	},
}

func withWorkflow(cmd *cobra.Command, fn func(*correction.Workflow) error) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	canon, err := newCanonicalizer()
	if err != nil {
		return err
	}

	return fn(correction.NewWorkflow(st, canon))
}

func init() {
	correctionsSubmitCmd.Flags().StringVar(&submitCategory, "category", "", "utility category (electric, gas, water)")
	correctionsSubmitCmd.Flags().StringVar(&submitProvider, "provider", "", "correct provider name")
	correctionsSubmitCmd.Flags().StringVar(&submitIncorrect, "replaces", "", "provider being corrected")
	correctionsSubmitCmd.Flags().StringVar(&submitState, "state", "", "two-letter state")
	correctionsSubmitCmd.Flags().StringVar(&submitZip, "zip", "", "5-digit ZIP code")
	correctionsSubmitCmd.Flags().StringVar(&submitCity, "city", "", "city")
	correctionsSubmitCmd.Flags().StringVar(&submitStreet, "street", "", "street")
	_ = correctionsSubmitCmd.MarkFlagRequired("category")
	_ = correctionsSubmitCmd.MarkFlagRequired("provider")
	_ = correctionsSubmitCmd.MarkFlagRequired("state")
	_ = correctionsSubmitCmd.MarkFlagRequired("zip")

	correctionsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (pending, verified, rejected)")
	correctionsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows")

	correctionsVerifyCmd.Flags().IntVar(&verifyLimit, "limit", 25, "maximum corrections to verify")

	correctionsCmd.AddCommand(correctionsSubmitCmd)
	correctionsCmd.AddCommand(correctionsApproveCmd)
	correctionsCmd.AddCommand(correctionsRejectCmd)
	correctionsCmd.AddCommand(correctionsListCmd)
	correctionsCmd.AddCommand(correctionsVerifyCmd)
	correctionsCmd.AddCommand(correctionsExportCmd)
	rootCmd.AddCommand(correctionsCmd)
}
