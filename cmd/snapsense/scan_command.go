package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"snapsense/internal/daemonrun"
	"snapsense/internal/history"
	"snapsense/internal/logging"
	"snapsense/internal/watcher"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rename matching screenshots in the watched directory once, in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := preflightDaemon(cfg); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg, "")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			var store *history.Store
			if cfg.History.Enabled {
				store, err = history.Open(cfg.HistoryDBPath())
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			pipeline := daemonrun.BuildPipeline(cfg, logger, store)
			report, err := watcher.Sweep(signalCtx, cfg.Watch.ScanDirectory, pipeline)

			out := cmd.OutOrStdout()
			for _, result := range report.Results {
				if !result.Renamed() {
					continue
				}
				fmt.Fprintf(out, "%s -> %s\n", filepath.Base(result.OriginalPath), filepath.Base(result.FinalPath))
			}
			for _, path := range report.Failed {
				fmt.Fprintf(out, "failed: %s\n", filepath.Base(path))
			}
			fmt.Fprintf(out, "Renamed %d file(s), %d failed, %d skipped\n", report.Renamed(), len(report.Failed), report.Skipped)
			return err
		},
	}
}
