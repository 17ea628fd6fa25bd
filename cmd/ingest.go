package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/ingest"
)

var (
	ingestFile string
	ingestURL  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source]",
	Short: "Ingest a tenant-observation snapshot",
	Long:  "Loads a CSV or XLSX snapshot of tenant utility observations from a local file, http(s) URL, or ftp URL into the store.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		source := ingestFile
		if source == "" {
			source = ingestURL
		}
		if source == "" && len(args) == 1 {
			source = args[0]
		}
		if source == "" {
			return fmt.Errorf("a snapshot source is required (--file, --url, or positional)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := ingest.New(st).Run(ctx, source)
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.String("source", source),
			zap.Int("rows", stats.Rows),
			zap.Int("inserted", stats.Inserted),
			zap.Int("skipped", stats.Skipped),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "local snapshot path")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "snapshot URL (http, https, or ftp)")
	rootCmd.AddCommand(ingestCmd)
}
