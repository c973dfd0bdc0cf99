package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/halsted/mftsearch/internal/cache"
	"github.com/halsted/mftsearch/internal/config"
	"github.com/halsted/mftsearch/internal/resultformat"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index for a substring across every present volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return runSearch(args[0])
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 100, "maximum number of results")
}

func runSearch(query string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	engine := cache.NewEngine(cfg)
	defer engine.Stop()

	start := time.Now()
	hits, err := engine.Search(context.Background(), query, searchLimit)
	if err != nil {
		return err
	}

	response := &resultformat.Response{
		Query:      query,
		Hits:       hits,
		TotalFound: len(hits),
		SearchTime: time.Since(start),
		Truncated:  len(hits) >= searchLimit,
	}
	return resultformat.FormatOutput(c.OutOrStdout(), response, outputFormat)
}
