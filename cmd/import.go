package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a subscriber's pings from a CSV or XLSX export",
	Long: "Creates the subscriber and stores every ping in the file, resolving each to a region. " +
		"A subscriber that already exists is skipped unless --append is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		opts := ingest.Options{}
		opts.Subscriber, _ = cmd.Flags().GetString("subscriber")
		opts.Path, _ = cmd.Flags().GetString("file")
		opts.Encoding, _ = cmd.Flags().GetString("encoding")
		opts.Sheet, _ = cmd.Flags().GetString("sheet")
		opts.Append, _ = cmd.Flags().GetBool("append")
		format, _ := cmd.Flags().GetString("format")

		res, err := ingest.NewImporter(env.Store, env.Resolver).Import(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("subscriber", opts.Subscriber),
			zap.String("file", opts.Path),
			zap.Int64("imported", res.Imported),
			zap.Bool("skipped", res.Skipped),
		)
		return writeOutput(os.Stdout, format, res)
	},
}

func init() {
	importCmd.Flags().String("subscriber", "", "subscriber name (required)")
	importCmd.Flags().String("file", "", "path to CSV or XLSX file (required)")
	importCmd.Flags().String("encoding", "utf-8", "CSV text encoding, e.g. windows-1252")
	importCmd.Flags().String("sheet", "", "XLSX sheet name (default first sheet)")
	importCmd.Flags().Bool("append", false, "add pings to an existing subscriber")
	importCmd.Flags().String("format", "json", "summary format: json or yaml")
	_ = importCmd.MarkFlagRequired("subscriber")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
