package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"snapsense/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent renames",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryDBPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if clearAll {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d history entries\n", removed)
				return nil
			}

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No renames recorded")
				return nil
			}
			fmt.Fprint(out, renderTable(historyColumns(), historyRows(entries)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all recorded renames")
	return cmd
}

func historyColumns() []tableColumn {
	return []tableColumn{
		{Header: "Renamed At"},
		{Header: "Original", Wrap: true},
		{Header: "New Name", Wrap: true},
		{Header: "Attempts", Align: alignRight},
		{Header: "Source"},
	}
}

func historyRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.RenamedAt.Local().Format("2006-01-02 15:04:05"),
			filepath.Base(entry.OriginalPath),
			filepath.Base(entry.FinalPath),
			strconv.Itoa(entry.Attempts),
			entry.Source,
		})
	}
	return rows
}
