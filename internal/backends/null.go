package backends

import (
	"context"

	"github.com/systmms/containerlib/pkg/backend"
)

// Null stands in for an unknown adapter selector. Every call fails with
// backend.ErrNotImplemented.
type Null struct {
	selector string
}

// NewNull creates the null adapter for the given unrecognised selector
func NewNull(selector string) *Null {
	return &Null{selector: selector}
}

// Name returns the adapter name
func (n *Null) Name() string {
	return "null"
}

// Selector returns the selector value that could not be resolved
func (n *Null) Selector() string {
	return n.selector
}

func (n *Null) Get(_ context.Context, _, def string) (string, error) {
	return def, backend.ErrNotImplemented
}

func (n *Null) Set(context.Context, string, any) (bool, error) {
	return false, backend.ErrNotImplemented
}

func (n *Null) GetAll(context.Context) (map[string]string, error) {
	return nil, backend.ErrNotImplemented
}

func (n *Null) SetAll(context.Context, map[string]any) (bool, error) {
	return false, backend.ErrNotImplemented
}
