package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"privatepilot/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent generations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Storage.Enabled {
			return errors.New("history is disabled (storage.enabled=false)")
		}
		store, err := storage.Open(cmd.Context(), cfg.Storage.Driver, cfg.Storage.DSN, cfg.Storage.AutoMigrate)
		if err != nil {
			return err
		}
		defer store.Close()

		gens, err := store.ListGenerations(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(gens) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No generations recorded yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tACTION\tPROVIDER\tMODEL\tOUTCOME\tDURATION\tERROR")
		for _, g := range gens {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%dms\t%s\n",
				g.CreatedAt.Local().Format("2006-01-02 15:04:05"), g.Action, g.Provider, g.Model, g.Outcome, g.DurationMS, g.Error)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")
}
