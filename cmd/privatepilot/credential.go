package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"privatepilot/internal/config"
	"privatepilot/internal/providers"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage encrypted provider API keys.",
	Long: `Store provider API keys encrypted in the local database. A master key must be provided via
PRIVATEPILOT_MASTER_KEY_B64 (or PRIVATEPILOT_MASTER_KEYS_JSON with PRIVATEPILOT_MASTER_KEY_CURRENT_ID).
A key set in the config file or environment always wins over a stored one.`,
}

var credentialSetCmd = &cobra.Command{
	Use:       "set <provider>",
	Short:     "Store an API key read from stdin.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"openai", "grok", "claude"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Crypto.Enabled() {
			return config.ErrMissingMasterKey
		}
		if err := checkProvider(args[0]); err != nil {
			return err
		}
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && strings.TrimSpace(line) == "" {
			return fmt.Errorf("read api key from stdin: %w", err)
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.service.SetCredential(cmd.Context(), args[0], line); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored API key for %s.\n", providers.ParseKind(args[0]))
		return nil
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <provider>",
	Short: "Remove a stored API key.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkProvider(args[0]); err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.service.DeleteCredential(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted API key for %s.\n", providers.ParseKind(args[0]))
		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers with a stored API key.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Crypto.Enabled() {
			return config.ErrMissingMasterKey
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		creds, err := a.service.Credentials(cmd.Context())
		if err != nil {
			return err
		}
		if len(creds) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No API keys stored.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tUPDATED\tMASTER KEY")
		for _, c := range creds {
			state := "current"
			if c.Stale {
				state = "retired (re-sealed on next use)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Kind, c.UpdatedAt.Local().Format("2006-01-02 15:04:05"), state)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialSetCmd, credentialDeleteCmd, credentialListCmd)
}

// checkProvider rejects names that would otherwise fall back to ollama.
func checkProvider(name string) error {
	if !providers.Known(name) {
		return fmt.Errorf("unknown provider %q", name)
	}
	return nil
}
