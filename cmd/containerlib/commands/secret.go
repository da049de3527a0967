package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/systmms/containerlib/internal/config"
	dserrors "github.com/systmms/containerlib/internal/errors"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/internal/manager"
)

func NewSecretCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Read and write the secret backend",
		Long: `Read and write values in the secret backend selected by GLUU_SECRET_ADAPTER.

Values encrypted with the deployment salt (encoded_salt) can be written to and
read from files with to-file and from-file.

Examples:
  # Write the decrypted LDAP truststore to disk
  containerlib secret to-file ldap_pkcs12_base64 /etc/certs/opendj.pkcs12 --binary

  # Store a certificate
  containerlib secret from-file ssl_cert /etc/certs/gluu_https.crt

  # List secret keys without printing the values
  containerlib secret dump`,
	}

	cmd.AddCommand(
		newGetCommand(cfg, "secret", pickSecret),
		newSetCommand(cfg, "secret", pickSecret),
		newDumpCommand(cfg, "secret", pickSecret, true),
		newToFileCommand(cfg),
		newFromFileCommand(cfg),
	)
	return cmd
}

func redacted(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = logging.Secret(v).String()
	}
	return out
}

func parseMode(s string) (os.FileMode, error) {
	mode, err := strconv.ParseUint(s, 8, 32)
	if err != nil || mode > 0o777 {
		return 0, dserrors.UserError{
			Message:    fmt.Sprintf("Invalid file mode '%s'", s),
			Suggestion: "Use an octal permission such as 0600 or 0644",
		}
	}
	return os.FileMode(mode), nil
}

func newToFileCommand(cfg *config.Config) *cobra.Command {
	var (
		decode bool
		binary bool
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "to-file KEY DEST",
		Short: "Write a secret value to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm, err := parseMode(mode)
			if err != nil {
				return err
			}
			opts := []manager.FileOption{manager.FileMode(perm)}
			if decode {
				opts = append(opts, manager.Decode())
			}
			if binary {
				opts = append(opts, manager.Binary())
			}

			m, err := loadManager(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Secret.ToFile(cmd.Context(), args[0], args[1], opts...); err != nil {
				return userFacing(err)
			}
			cfg.Logger.Info("wrote secret %s to %s", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&decode, "decode", false, "Decrypt the value with encoded_salt before writing")
	cmd.Flags().BoolVar(&binary, "binary", false, "Write raw bytes (implies --decode)")
	cmd.Flags().StringVar(&mode, "mode", "0600", "Permissions of the written file")
	return cmd
}

func newFromFileCommand(cfg *config.Config) *cobra.Command {
	var (
		encode bool
		binary bool
	)

	cmd := &cobra.Command{
		Use:   "from-file KEY SRC",
		Short: "Store the content of a file as a secret value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []manager.FileOption
			if encode {
				opts = append(opts, manager.Encode())
			}
			if binary {
				opts = append(opts, manager.Binary())
			}

			m, err := loadManager(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Secret.FromFile(cmd.Context(), args[0], args[1], opts...); err != nil {
				return userFacing(err)
			}
			cfg.Logger.Info("stored secret %s from %s", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&encode, "encode", false, "Encrypt the content with encoded_salt before storing")
	cmd.Flags().BoolVar(&binary, "binary", false, "Read raw bytes (implies --encode)")
	return cmd
}
