package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/systmms/containerlib/internal/backends"
	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/manager"
	"github.com/systmms/containerlib/internal/wait"
)

func NewWaitCommand(cfg *config.Config) *cobra.Command {
	var (
		deps     []string
		connOnly []string
	)

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until dependencies are ready",
		Long: `Block until every dependency is ready, then exit 0. When one of them is
still not ready after GLUU_WAIT_MAX_TIME seconds, exit 1.

Dependencies: config, secret, ldap, couchbase, oxauth, oxtrust, sql.
Names listed in --conn-only only need to accept connections; the others must
also hold the data written by the initial setup.

Examples:
  # Wait for both backends to hold data
  containerlib wait --deps config,secret

  # Wait for the backends and for LDAP to accept connections
  containerlib wait --deps config,secret,ldap --conn-only ldap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// an unknown selector only fails the probe that uses it
			registry := backends.NewRegistry(backends.WithFallbackToNull())
			m, err := loadManager(ctx, cfg, manager.WithRegistry(registry))
			if err != nil {
				return err
			}
			defer m.Close()

			wait.InitMetrics()
			w := wait.NewWaiter(m, cfg.Settings, cfg.Logger,
				wait.WithMetrics(wait.NewMetrics()),
				// the error is returned so the metrics file is written first
				wait.WithExit(func(int) {}),
			)

			waitErr := w.WaitFor(ctx, deps, connOnly)
			writeMetrics(cfg)
			return waitErr
		},
	}

	cmd.Flags().StringSliceVar(&deps, "deps", []string{wait.DepConfig, wait.DepSecret}, "Dependencies to wait for, in order")
	cmd.Flags().StringSliceVar(&connOnly, "conn-only", nil, "Dependencies that only need to accept connections")
	return cmd
}

func writeMetrics(cfg *config.Config) {
	path := cfg.Settings.MetricsTextfile
	if path == "" {
		return
	}
	if err := wait.WriteTextfile(path); err != nil {
		cfg.Logger.Warn("failed to write metrics to %s: %v", path, err)
	}
}
