package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/containerlib/internal/config"
	dserrors "github.com/systmms/containerlib/internal/errors"
	"github.com/systmms/containerlib/internal/manager"
)

// store is what the get, set and dump subcommands need from a manager
type store interface {
	Get(ctx context.Context, key, def string) (string, error)
	Set(ctx context.Context, key string, value any) (bool, error)
	GetAll(ctx context.Context) (map[string]string, error)
}

type storePicker func(m *manager.Manager) store

func pickConfig(m *manager.Manager) store { return m.Config }

func pickSecret(m *manager.Manager) store { return m.Secret }

func NewConfigCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write the config backend",
		Long: `Read and write values in the config backend selected by GLUU_CONFIG_ADAPTER.

Examples:
  # Print a single value
  containerlib config get hostname

  # Store a value
  containerlib config set hostname demo.example.com

  # Dump every value as JSON
  containerlib config dump --format json`,
	}

	cmd.AddCommand(
		newGetCommand(cfg, "config", pickConfig),
		newSetCommand(cfg, "config", pickConfig),
		newDumpCommand(cfg, "config", pickConfig, false),
	)
	return cmd
}

func newGetCommand(cfg *config.Config, kind string, pick storePicker) *cobra.Command {
	var def string

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: fmt.Sprintf("Print a %s value", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManager(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			value, err := pick(m).Get(cmd.Context(), args[0], def)
			if err != nil {
				return userFacing(err)
			}
			// Raw value output, suitable for $(...)
			fmt.Fprint(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().StringVar(&def, "default", "", "Value printed when the key does not exist")
	return cmd
}

func newSetCommand(cfg *config.Config, kind string, pick storePicker) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: fmt.Sprintf("Store a %s value", kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any = args[1]
			if asJSON {
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					return dserrors.UserError{
						Message:    fmt.Sprintf("Value for '%s' is not valid JSON", args[0]),
						Suggestion: "Quote the value for your shell, or drop --json to store it as a string",
						Err:        err,
					}
				}
			}

			m, err := loadManager(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			if _, err := pick(m).Set(cmd.Context(), args[0], value); err != nil {
				return userFacing(err)
			}
			cfg.Logger.Info("stored %s %s", kind, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Parse VALUE as JSON before storing it")
	return cmd
}

func newDumpCommand(cfg *config.Config, kind string, pick storePicker, sensitive bool) *cobra.Command {
	var (
		format string
		reveal bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: fmt.Sprintf("Print every %s value", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManager(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			values, err := pick(m).GetAll(cmd.Context())
			if err != nil {
				return userFacing(err)
			}
			if sensitive && !reveal {
				values = redacted(values)
			}
			return writeValues(cmd.OutOrStdout(), values, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	if sensitive {
		cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secret values instead of redacting them")
	}
	return cmd
}
