package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/containerlib/internal/backends"
	"github.com/systmms/containerlib/internal/config"
	dserrors "github.com/systmms/containerlib/internal/errors"
	"github.com/systmms/containerlib/internal/persistence"
)

// validateSettings returns every problem found in the adapter selectors and
// persistence settings.
func validateSettings(s *config.Settings) []error {
	var problems []error

	registry := backends.NewRegistry()
	for _, check := range []struct {
		kind     backends.Kind
		field    string
		selector string
	}{
		{backends.KindConfig, "GLUU_CONFIG_ADAPTER", s.ConfigAdapter},
		{backends.KindSecret, "GLUU_SECRET_ADAPTER", s.SecretAdapter},
	} {
		supported := registry.SupportedSelectors(check.kind)
		found := false
		for _, sel := range supported {
			if sel == check.selector {
				found = true
				break
			}
		}
		if !found {
			problems = append(problems, dserrors.ConfigError{
				Field:      check.field,
				Value:      check.selector,
				Message:    fmt.Sprintf("unsupported %s adapter", check.kind),
				Suggestion: fmt.Sprintf("Set %s to one of: %s", check.field, strings.Join(supported, ", ")),
			})
		}
	}

	if err := persistence.ValidateType(s.Persistence.Type); err != nil {
		problems = append(problems, err)
	}
	if err := persistence.ValidateLDAPMapping(s.Persistence.Type, s.Persistence.LDAPMapping); err != nil {
		problems = append(problems, err)
	}
	if s.Persistence.Type == persistence.TypeSQL {
		if err := persistence.ValidateSQLDialect(s.SQL.Dialect); err != nil {
			problems = append(problems, err)
		}
	}
	return problems
}

func NewValidateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check adapter and persistence settings",
		Long: `Validate the adapter selectors and persistence settings read from the
environment without contacting any backend.

Checked variables:
  GLUU_CONFIG_ADAPTER, GLUU_SECRET_ADAPTER
  GLUU_PERSISTENCE_TYPE, GLUU_PERSISTENCE_LDAP_MAPPING (hybrid only)
  GLUU_SQL_DB_DIALECT (sql only)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			s := cfg.Settings

			problems := validateSettings(s)
			if len(problems) > 0 {
				return dserrors.UserError{
					Message:    fmt.Sprintf("%d invalid setting(s)", len(problems)),
					Details:    errors.Join(problems...).Error(),
					Suggestion: "Fix the variables above and run 'containerlib validate' again",
					Err:        errors.Join(problems...),
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config adapter:   %s\n", s.ConfigAdapter)
			fmt.Fprintf(out, "secret adapter:   %s\n", s.SecretAdapter)
			fmt.Fprintf(out, "persistence type: %s\n", s.Persistence.Type)
			switch s.Persistence.Type {
			case persistence.TypeHybrid:
				fmt.Fprintf(out, "ldap mapping:     %s\n", s.Persistence.LDAPMapping)
			case persistence.TypeSQL:
				fmt.Fprintf(out, "sql dialect:      %s\n", s.SQL.Dialect)
			}
			if s.Persistence.Type == persistence.TypeCouchbase || s.Persistence.Type == persistence.TypeHybrid {
				var buckets []string
				for _, m := range persistence.CouchbaseMappings(s.Persistence.Type, s.Persistence.LDAPMapping, s.Couchbase.BucketPrefix) {
					buckets = append(buckets, m.Bucket)
				}
				fmt.Fprintf(out, "couchbase buckets: %s\n", strings.Join(buckets, ", "))
			}
			return nil
		},
	}
	return cmd
}
