// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the id batches remembered from earlier runs",
	Long: `History shows one row per stored batch: the run date, how many paper ids
it holds, and when it was last written. Runs consult the batches of the
previous days to skip papers they already reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := types.HistoryConfig{
			Backend: viper.GetString(keyHistoryBackend),
			Path:    viper.GetString(keyHistoryPath),
		}
		store, err := history.Open(cfg, viper.GetString(keyDataDir), "")
		if err != nil {
			return err
		}
		defer store.Close()

		return listHistory(cmd.Context(), store, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func listHistory(ctx context.Context, store history.Store, out io.Writer) error {
	batches, err := store.Batches(ctx)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Fprintln(out, "No history recorded")
		return nil
	}

	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		updated := ""
		if !b.UpdatedAt.IsZero() {
			updated = b.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{b.ID, strconv.Itoa(b.Count), updated})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Batch", "IDs", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
		isTerminal(out),
	))
	return nil
}
