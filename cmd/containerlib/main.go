package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/containerlib/cmd/containerlib/commands"
	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		noColor   bool
		debug     bool
		logFormat string
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "containerlib",
		Short: "Container bootstrap helpers for identity server deployments",
		Long: `containerlib reads and writes the config and secret backends shared by the
containers of an identity server deployment, and blocks container startup
until the services they depend on are ready.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(debug, noColor)
			switch logFormat {
			case "text":
			case "json":
				logger.SetJSON()
			default:
				return fmt.Errorf("unknown log format %q; use text or json", logFormat)
			}

			cfg.Logger = logger
			cfg.Debug = debug
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		commands.NewWaitCommand(cfg),
		commands.NewConfigCommand(cfg),
		commands.NewSecretCommand(cfg),
		commands.NewValidateCommand(cfg),
	)

	return rootCmd.Execute()
}
