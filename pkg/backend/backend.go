// Package backend defines the key-value contract shared by every config and
// secret backend used by containerlib.
//
// A backend is a flat string namespace living in some external system:
// a Consul KV prefix, a Kubernetes ConfigMap or Secret, a Vault KV path or a
// single AWS Secrets Manager document. Implementations live in
// internal/backends and are selected once per process by the manager.
//
// # Contract
//
//   - Get returns the supplied default when the key or the whole namespace
//     is missing. A miss is never an error.
//   - Transport failures are returned as *UnavailableError so callers can
//     tell "not there" apart from "could not ask".
//   - Set stores the SafeValue rendering of the value.
//   - GetAll returns every key with the namespace prefix stripped, and an
//     empty map for an empty namespace.
//   - SetAll writes each pair in turn. It is not transactional: a failure
//     part way leaves earlier keys written and reports the failed keys.
//
// # Error Handling
//
// Errors are matched with errors.Is against the sentinels in this package:
//
//	if errors.Is(err, backend.ErrBackendUnavailable) {
//	    // retry later
//	}
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Adapter is a uniform get/set view over one key-value namespace.
//
// Adapters are owned by a single manager and are not required to be safe
// for concurrent use.
type Adapter interface {
	// Name returns the stable identifier of the backend, for example
	// "consul" or "kubernetes".
	Name() string

	// Get returns the stored value for key, or def when it is absent.
	Get(ctx context.Context, key, def string) (string, error)

	// Set stores value under key. It reports whether the backend
	// acknowledged the write.
	Set(ctx context.Context, key string, value any) (bool, error)

	// GetAll returns every key in the namespace without its prefix.
	GetAll(ctx context.Context) (map[string]string, error)

	// SetAll stores every pair of data. It returns true only when all
	// writes were acknowledged.
	SetAll(ctx context.Context, data map[string]any) (bool, error)
}

var (
	// ErrBackendUnavailable marks a transport-level failure talking to a backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrNotReady marks a reachable backend that lacks the expected data.
	ErrNotReady = errors.New("not ready")

	// ErrNotImplemented is returned by every call on the null adapter.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidEncoding marks binary content read as text.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrValidation marks an unsupported settings value.
	ErrValidation = errors.New("validation error")
)

// UnavailableError wraps a transport failure with the backend and operation
// that produced it.
type UnavailableError struct {
	// Backend is the adapter name, for example "vault".
	Backend string

	// Op is the adapter operation: get, set, get_all or set_all.
	Op string

	// Err is the underlying client error.
	Err error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the client error.
func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is matches ErrBackendUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// Unavailable builds an *UnavailableError. A nil err yields nil.
func Unavailable(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Backend: backend, Op: op, Err: err}
}

// PartialWriteError reports the keys a SetAll call failed to store.
type PartialWriteError struct {
	Backend string
	Failed  map[string]error
}

func (e *PartialWriteError) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s set_all: %d key(s) not stored: %s", e.Backend, len(keys), strings.Join(keys, ", "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialWriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// SetEach stores every pair of data through set, in key order. It is the
// shared SetAll implementation for adapters that write key by key.
func SetEach(ctx context.Context, name string, data map[string]any, set func(context.Context, string, any) (bool, error)) (bool, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	failed := make(map[string]error)
	for _, k := range keys {
		ok, err := set(ctx, k, data[k])
		if err != nil {
			failed[k] = err
			continue
		}
		if !ok {
			failed[k] = fmt.Errorf("%s: write of %q not acknowledged", name, k)
		}
	}
	if len(failed) > 0 {
		return false, &PartialWriteError{Backend: name, Failed: failed}
	}
	return true, nil
}
