package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

// GiveUpError is returned by Retry when a dependency did not become ready
// within the policy, or the context was cancelled.
type GiveUpError struct {
	Label     string
	Elapsed   time.Duration
	Attempts  int
	Cancelled bool
	Last      Result
}

func (e *GiveUpError) Error() string {
	if e.Cancelled {
		return fmt.Sprintf("%s wait cancelled after %d seconds; last reason=%s", e.Label, int(e.Elapsed.Seconds()), e.Last.Reason)
	}
	return fmt.Sprintf("%s is not ready after %d seconds; reason=%s", e.Label, int(e.Elapsed.Seconds()), e.Last.Reason)
}

// Unwrap returns backend.ErrNotReady when the dependency was reachable but
// never reached the expected state.
func (e *GiveUpError) Unwrap() error {
	return notReadyCause(e.Last)
}

// probeFailure carries a non-ready Result through the retry loop
type probeFailure struct {
	result Result
}

func (f *probeFailure) Error() string {
	return f.result.Reason
}

func (f *probeFailure) Unwrap() error {
	return notReadyCause(f.result)
}

func notReadyCause(r Result) error {
	if r.Status == StatusNotReady {
		return backend.ErrNotReady
	}
	return nil
}

type retryOptions struct {
	clock    clock.Clock
	logger   *logging.Logger
	observer func(Result)
}

// RetryOption tunes Retry
type RetryOption func(*retryOptions)

// WithClock sets the clock used for sleeping and elapsed time (for testing)
func WithClock(c clock.Clock) RetryOption {
	return func(o *retryOptions) {
		o.clock = c
	}
}

// WithLogger sets the logger for retry and outcome lines
func WithLogger(l *logging.Logger) RetryOption {
	return func(o *retryOptions) {
		o.logger = l
	}
}

// WithObserver is called with the result of every probe attempt
func WithObserver(fn func(Result)) RetryOption {
	return func(o *retryOptions) {
		o.observer = fn
	}
}

// Retry runs probe until it reports Ready. After each failure it sleeps
// policy.Interval, unless the elapsed time plus that sleep would exceed
// policy.MaxWaitTime, in which case it returns a *GiveUpError.
func Retry(ctx context.Context, label string, policy Policy, probe Probe, opts ...RetryOption) error {
	o := &retryOptions{clock: clock.WallClock, logger: logging.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	log := o.logger.WithField("dependency", label)
	start := o.clock.Now()
	attempts := 0
	var last Result

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempts++
			last = probe(ctx)
			if o.observer != nil {
				o.observer(last)
			}
			if last.IsReady() {
				return nil
			}
			return &probeFailure{result: last}
		},
		NotifyFunc: func(err error, attempt int) {
			// retry gives up after notifying when the next sleep would
			// cross the deadline; stay quiet in that case
			if o.clock.Now().Sub(start)+policy.Interval > policy.MaxWaitTime {
				return
			}
			log.Warn("%s is not ready; reason=%s; retrying in %d seconds", label, err, int(policy.Interval.Seconds()))
		},
		Attempts:    -1,
		Delay:       policy.Interval,
		MaxDuration: policy.MaxWaitTime,
		Clock:       o.clock,
		Stop:        ctx.Done(),
	})

	elapsed := o.clock.Now().Sub(start)
	if err == nil {
		log.Info("%s is ready", label)
		return nil
	}

	var failure *probeFailure
	if !errors.As(retry.LastError(err), &failure) && !errors.As(err, &failure) {
		return err
	}

	giveUp := &GiveUpError{
		Label:     label,
		Elapsed:   elapsed,
		Attempts:  attempts,
		Cancelled: retry.IsRetryStopped(err),
		Last:      last,
	}
	log.Error("%s", giveUp.Error())
	return giveUp
}
