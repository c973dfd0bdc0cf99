package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halsted/mftsearch/internal/cache"
	"github.com/halsted/mftsearch/internal/config"
)

var warmupCmd = &cobra.Command{
	Use:   "warmup <drives>",
	Short: "Pre-open per-drive query handles to eliminate first-query latency",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		engine := cache.NewEngine(cfg)
		defer engine.Stop()

		var drives []byte
		for i := 0; i < len(args[0]); i++ {
			letter := args[0][i]
			if letter == ',' || letter == ' ' {
				continue
			}
			drives = append(drives, letter)
		}
		engine.Warmup(drives)
		fmt.Fprintf(c.OutOrStdout(), "warmed up %d drive(s)\n", len(drives))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(warmupCmd)
}
