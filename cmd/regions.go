package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/model"
	"github.com/jonnison/tower-jumps/internal/regions"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Manage region boundaries",
}

var regionsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load region boundaries from a shapefile",
	Long: "Downloads the configured boundary shapefile archive (or reads a local .shp with --file) " +
		"and upserts every region. Does nothing when regions already exist unless --force is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		url, _ := cmd.Flags().GetString("url")
		force, _ := cmd.Flags().GetBool("force")
		if url == "" {
			url = cfg.Regions.ShapefileURL
		}

		var res *regions.LoadResult
		if file != "" {
			res, err = regions.LoadFile(ctx, st, file, force)
		} else {
			res, err = regions.LoadFromURL(ctx, st, url, cfg.Regions.TempDir, force)
		}
		if err != nil {
			return eris.Wrap(err, "regions load")
		}

		zap.L().Info("regions load complete",
			zap.Int("existing", res.Existing),
			zap.Int64("loaded", res.Loaded),
			zap.Bool("skipped", res.Skipped),
		)
		return nil
	},
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded regions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		list, err := st.ListRegions(ctx)
		if err != nil {
			return eris.Wrap(err, "regions list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No regions loaded.")
			return nil
		}

		formatRegions(os.Stdout, list)
		return nil
	},
}

func formatRegions(out io.Writer, list []model.Region) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\n", r.Code, r.Name)
	}
	w.Flush() //nolint:errcheck
}

func init() {
	regionsLoadCmd.Flags().String("url", "", "shapefile archive URL (default from config)")
	regionsLoadCmd.Flags().String("file", "", "local .shp file to load instead of downloading")
	regionsLoadCmd.Flags().Bool("force", false, "upsert even when regions already exist")

	regionsCmd.AddCommand(regionsLoadCmd, regionsListCmd)
	rootCmd.AddCommand(regionsCmd)
}
