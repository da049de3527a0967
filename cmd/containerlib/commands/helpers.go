package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/systmms/containerlib/internal/config"
	dserrors "github.com/systmms/containerlib/internal/errors"
	"github.com/systmms/containerlib/internal/manager"
	"github.com/systmms/containerlib/pkg/backend"
)

// openManager builds the managers from the loaded settings. Tests replace it
// to run commands against in-memory adapters.
var openManager = func(ctx context.Context, cfg *config.Config, opts ...manager.Option) (*manager.Manager, error) {
	return manager.New(ctx, cfg.MustSettings(), cfg.Logger, opts...)
}

// loadManager loads settings and opens the managers
func loadManager(ctx context.Context, cfg *config.Config, opts ...manager.Option) (*manager.Manager, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return openManager(ctx, cfg, opts...)
}

// userFacing turns backend failures into errors with a suggestion
func userFacing(err error) error {
	if err == nil {
		return nil
	}
	var unavailable *backend.UnavailableError
	if errors.As(err, &unavailable) {
		return dserrors.BackendError(unavailable.Backend, unavailable.Op, err)
	}
	return dserrors.SimplifyError(err)
}

// writeValues prints values as yaml or json
func writeValues(w io.Writer, values map[string]string, format string) error {
	switch format {
	case "yaml", "":
		if len(values) == 0 {
			_, err := fmt.Fprintln(w, "{}")
			return err
		}
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(values); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(values); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	default:
		return dserrors.UserError{
			Message:    fmt.Sprintf("Unknown output format '%s'", format),
			Suggestion: "Use --format yaml or --format json",
		}
	}
}
