package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halsted/mftsearch/internal/cache"
	"github.com/halsted/mftsearch/internal/config"
)

var rebuildBackground bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Run a full bulk scan (C1-C4) of every fixed NTFS volume",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		engine := cache.NewEngine(cfg)
		defer engine.Stop()

		if err := engine.RebuildAll(context.Background(), rebuildBackground); err != nil {
			return err
		}
		if rebuildBackground {
			fmt.Fprintln(c.OutOrStdout(), "rebuild started in the background")
		} else {
			fmt.Fprintln(c.OutOrStdout(), "rebuild complete")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().BoolVar(&rebuildBackground, "background", false, "return immediately instead of blocking until every volume's scan finishes")
}
