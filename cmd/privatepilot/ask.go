package main

import (
	"strings"

	"github.com/spf13/cobra"

	"privatepilot/internal/actions"
	"privatepilot/internal/pilot"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a question, optionally with code from --file as context.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var surrounding string
		if inputFile != "" {
			code, err := readInput(cmd.InOrStdin(), inputFile)
			if err != nil {
				return err
			}
			surrounding = code
		}
		return generate(cmd.Context(), cmd.OutOrStdout(), pilot.Request{
			Action: actions.Ask,
			Input: actions.Input{
				Question: strings.Join(args, " "),
				Language: language,
				Context:  surrounding,
			},
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	addGenerateFlags(askCmd)
}
