package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halsted/mftsearch/internal/cache"
	"github.com/halsted/mftsearch/internal/config"
)

var monitorMerge bool

var monitorCmd = &cobra.Command{
	Use:   "monitor <drives>",
	Short: "Start the USN incremental updater (C6) for one or more drives",
	Long: `Starts the long-running USN journal listener for each named drive
letter and blocks until interrupted. Pass --merge to also start the
delta merger (C7) alongside the updater for each drive.`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return runMonitor(args[0])
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorMerge, "merge", false, "also start the delta merger for each monitored drive")
}

func runMonitor(drives string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	engine := cache.NewEngine(cfg)
	defer engine.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < len(drives); i++ {
		letter := drives[i]
		if letter == ',' || letter == ' ' {
			continue
		}
		if err := engine.StartMonitoring(ctx, letter); err != nil {
			return fmt.Errorf("starting monitor for drive %c: %w", letter, err)
		}
		if monitorMerge {
			if err := engine.StartMerger(ctx, letter); err != nil {
				return fmt.Errorf("starting merger for drive %c: %w", letter, err)
			}
		}
	}

	fmt.Println("monitoring started, press Ctrl+C to stop")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return nil
}
