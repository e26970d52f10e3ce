package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tower-jumps",
	Short: "Infer subscriber locations from cell tower pings",
	Long:  "Loads region boundaries, imports subscriber pings and infers which region a subscriber was in, suppressing tower jumps.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
