package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halsted/mftsearch/internal/config"
	"github.com/halsted/mftsearch/internal/merger"
	"github.com/halsted/mftsearch/internal/mftypes"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <drive>",
	Short: "Run one delta-compaction pass (C7) for a single drive",
	Long: `Runs MergeOnce unconditionally, regardless of the delta file's current
size, for operational testing of the compactor outside the long-running
merger goroutine started by "monitor --merge".`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return runMerge(c, args[0][0])
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(c *cobra.Command, drive byte) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ap := mftypes.ArtifactPaths{Root: cfg.ArtifactsRoot, Letter: drive}
	m := merger.New(ap, cfg.MergeThresholdMB, 0)
	if err := m.MergeOnce(); err != nil {
		return err
	}

	fmt.Fprintf(c.OutOrStdout(), "merge complete for drive %c:\n", drive)
	return nil
}
