package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"privatepilot/internal/actions"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the available editor actions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := actions.Load(cfg.Prompts.File)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ACTION\tMODE\tRESULT\tDESCRIPTION")
		for _, d := range catalog.Definitions() {
			result := "insert"
			if d.Replace {
				result = "replace"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Mode, result, d.Description)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}
