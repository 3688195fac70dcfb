package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"privatepilot/internal/config"
	"privatepilot/internal/providers"
)

var (
	cfgFile          string
	providerOverride string
	logLevel         string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "privatepilot",
	Short: "privatepilot is a local coding assistant backed by self-hosted or remote LLMs.",
	Long: `privatepilot turns editor actions (improve, explain, fix typos, review, ask...) into prompts,
sends them to ollama, an OpenAI-compatible API, grok or claude, and returns the generated code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if providerOverride != "" {
			loaded.Provider = strings.ToLower(strings.TrimSpace(providerOverride))
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded

		setupLogger(cfg.Log.Level, cfg.Log.Format)
		log.Debug().Str("config_file", cfg.File).Str("provider", cfg.Provider).Msg("configuration loaded")
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "privatepilot:", providers.Describe(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/privatepilot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&providerOverride, "provider", "", "provider to use: ollama, openai, grok or claude")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// setupLogger writes to stderr so generated text on stdout stays clean.
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	if format == config.LogFormatConsole {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
