package helpers

import (
	"context"
	"time"

	"github.com/libcatalog/catalog-test-harness/framework"
)

// DefaultPollInterval is the fixed interval between evaluations of a Condition.
const DefaultPollInterval = 100 * time.Millisecond

// Condition is a predicate over session state that WaitFor evaluates repeatedly.
//
// It returns found=false while the awaited state has simply not appeared yet. Any non-nil
// error is a fault (a malformed query, a crashed engine) and ends the wait immediately; it is
// never interpreted as "not found".
type Condition[V any] func(ctx context.Context) (value V, found bool, err error)

// WaitResult is the non-fault outcome of WaitFor: either the condition held and produced a
// value, or the timeout elapsed first.
type WaitResult[V any] struct {
	value   V
	found   bool
	elapsed time.Duration
}

// IsFound returns true if the condition held within the timeout.
func (r WaitResult[V]) IsFound() bool { return r.found }

// Value returns the value produced by the condition, or the zero value if it timed out.
func (r WaitResult[V]) Value() V { return r.value }

// Elapsed returns how long the wait took.
func (r WaitResult[V]) Elapsed() time.Duration { return r.elapsed }

// OrTimeout converts a timed-out result into a framework.TimeoutFault describing what was
// being waited for.
func (r WaitResult[V]) OrTimeout(what string, timeout time.Duration) (V, error) {
	if r.found {
		return r.value, nil
	}
	return r.value, framework.TimeoutFault{What: what, Timeout: timeout}
}

// WaitFor evaluates cond immediately and then at every interval until it reports found, until
// the timeout elapses, or until ctx is done.
//
// The timeout belongs to this call only; it is not shared with any other wait. A fault returned
// by cond is returned unchanged and is not retried. Cancellation of ctx (for instance, the run
// budget expiring) is reported as a framework.InfrastructureFault.
func WaitFor[V any](
	ctx context.Context,
	cond Condition[V],
	timeout time.Duration,
	interval time.Duration,
) (WaitResult[V], error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	start := time.Now()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for polled := false; ; polled = true {
		// A slow condition can let the deadline and the ticker fire together; never start a
		// poll after the window has closed.
		if polled && time.Since(start) >= timeout {
			return WaitResult[V]{elapsed: time.Since(start)}, nil
		}
		value, found, err := cond(ctx)
		if err != nil {
			return WaitResult[V]{elapsed: time.Since(start)}, err
		}
		if found {
			return WaitResult[V]{value: value, found: true, elapsed: time.Since(start)}, nil
		}
		select {
		case <-ctx.Done():
			return WaitResult[V]{elapsed: time.Since(start)}, framework.InfrastructureFault{Op: "wait", Err: ctx.Err()}
		case <-deadline.C:
			return WaitResult[V]{elapsed: time.Since(start)}, nil
		case <-ticker.C:
		}
	}
}

// AbsenceResult is the non-fault outcome of ExpectAbsent.
type AbsenceResult[V any] struct {
	present bool
	found   V
	elapsed time.Duration
}

// IsAbsent returns true if the condition never held for the whole timeout window.
func (r AbsenceResult[V]) IsAbsent() bool { return !r.present }

// Found returns whatever the condition produced when it unexpectedly held.
func (r AbsenceResult[V]) Found() V { return r.found }

// Elapsed returns how long the check took.
func (r AbsenceResult[V]) Elapsed() time.Duration { return r.elapsed }

// ExpectAbsent checks that cond does NOT hold at any point within the timeout.
//
// Absence is established only by WaitFor timing out, so a successful result never arrives
// before the timeout has elapsed. If the condition holds, the result is present (the caller's
// assertion fails). Faults are returned unchanged, so an engine error can never be mistaken
// for absence.
func ExpectAbsent[V any](
	ctx context.Context,
	cond Condition[V],
	timeout time.Duration,
	interval time.Duration,
) (AbsenceResult[V], error) {
	result, err := WaitFor(ctx, cond, timeout, interval)
	if err != nil {
		return AbsenceResult[V]{elapsed: result.Elapsed()}, err
	}
	if result.IsFound() {
		return AbsenceResult[V]{present: true, found: result.Value(), elapsed: result.Elapsed()}, nil
	}
	return AbsenceResult[V]{elapsed: result.Elapsed()}, nil
}

// RequireFound waits for cond and returns its value. If the timeout elapses, the test fails
// with a TimeoutFault message and terminates; a fault is passed to onFault, which is expected to
// terminate the test.
func RequireFound[V any](
	ctx context.Context,
	t TestContext,
	cond Condition[V],
	what string,
	timeout time.Duration,
	interval time.Duration,
	onFault func(error),
) V {
	result, err := WaitFor(ctx, cond, timeout, interval)
	if err != nil {
		onFault(err)
		var empty V
		return empty
	}
	value, err := result.OrTimeout(what, timeout)
	if err != nil {
		t.Errorf("%s", err)
		t.FailNow()
	}
	return value
}
