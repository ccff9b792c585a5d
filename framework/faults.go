package framework

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched (with errors.Is) by every TimeoutFault.
var ErrTimeout = errors.New("timed out")

// TimeoutFault means that a bounded wait ended without the awaited condition ever holding.
// It is an expected outcome for an absence check and a failure anywhere else.
type TimeoutFault struct {
	What    string
	Timeout time.Duration
}

func (e TimeoutFault) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
}

func (e TimeoutFault) Is(target error) bool { return target == ErrTimeout }

// NavigationFault means the browser could not load a page.
type NavigationFault struct {
	URL string
	Err error
}

func (e NavigationFault) Error() string {
	return fmt.Sprintf("navigation to %s failed: %s", e.URL, e.Err)
}

func (e NavigationFault) Unwrap() error { return e.Err }

// SelectorFault means a query was malformed or used a strategy the engine cannot evaluate.
// It is never the same thing as "no element matched".
type SelectorFault struct {
	Selector string
	Err      error
}

func (e SelectorFault) Error() string {
	return fmt.Sprintf("invalid selector %s: %s", e.Selector, e.Err)
}

func (e SelectorFault) Unwrap() error { return e.Err }

// InfrastructureFault covers engine crashes, disconnects, and cancellation of the run.
type InfrastructureFault struct {
	Op  string
	Err error
}

func (e InfrastructureFault) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e InfrastructureFault) Unwrap() error { return e.Err }

// AssertionMismatch describes a check whose actual value differed from the expected one.
type AssertionMismatch struct {
	What     string
	Expected interface{}
	Actual   interface{}
}

func (e AssertionMismatch) Error() string {
	return fmt.Sprintf("%s: expected %v, actual %v", e.What, e.Expected, e.Actual)
}

// IsFailure returns true if the error represents a failed check (a mismatch or a timeout) rather
// than a problem with the harness or the browser. Any other error makes a case Errored.
func IsFailure(err error) bool {
	var mismatch AssertionMismatch
	return errors.As(err, &mismatch) || errors.Is(err, ErrTimeout)
}
