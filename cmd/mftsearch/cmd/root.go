package cmd

import (
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "mftsearch",
	Short: "Whole-volume NTFS file-name search engine",
	Long: `mftsearch indexes every file on every fixed NTFS volume and answers
substring queries against millions of file names in interactive time.

Commands:
  search     Query the index for a substring
  rebuild    Run a full bulk scan of every fixed volume
  monitor    Start the USN incremental updater for one or more drives
  warmup     Pre-open per-drive query handles to eliminate first-query latency`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
}
