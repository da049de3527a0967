// Package wait blocks container startup until the services it depends on
// are reachable and initialised.
//
// Each dependency has a probe: a single check that reports Ready, NotReady
// or ConnectionError. Retry drives a probe at a constant interval until it
// is ready or the policy's deadline would be crossed by the next sleep.
// Waiter runs the probes for a list of dependencies in order and ends the
// process when one of them gives up.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/containerlib/internal/config"
)

// Policy is a constant-interval retry budget
type Policy struct {
	MaxWaitTime time.Duration
	Interval    time.Duration
}

// PolicyFromSettings builds the policy from GLUU_WAIT_MAX_TIME and
// GLUU_WAIT_SLEEP_DURATION.
func PolicyFromSettings(s config.WaitSettings) Policy {
	return Policy{MaxWaitTime: s.MaxTime, Interval: s.SleepDuration}
}

// Validate rejects policies Retry cannot run
func (p Policy) Validate() error {
	if p.MaxWaitTime <= 0 {
		return fmt.Errorf("max wait time must be positive, got %s", p.MaxWaitTime)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", p.Interval)
	}
	return nil
}

// Status is the outcome of one probe
type Status int

const (
	StatusReady Status = iota
	StatusNotReady
	StatusConnectionError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusNotReady:
		return "not_ready"
	case StatusConnectionError:
		return "connection_error"
	default:
		return "unknown"
	}
}

// Result is what a probe reports
type Result struct {
	Status Status
	Reason string
}

// Ready reports a dependency that can be used
func Ready() Result {
	return Result{Status: StatusReady}
}

// NotReady reports a reachable dependency lacking the expected state
func NotReady(format string, args ...interface{}) Result {
	return Result{Status: StatusNotReady, Reason: fmt.Sprintf(format, args...)}
}

// ConnectionError reports a dependency that could not be reached
func ConnectionError(err error) Result {
	return Result{Status: StatusConnectionError, Reason: err.Error()}
}

// IsReady reports whether the probe succeeded
func (r Result) IsReady() bool {
	return r.Status == StatusReady
}

// Probe checks a dependency once. It must not loop or sleep.
type Probe func(ctx context.Context) Result
