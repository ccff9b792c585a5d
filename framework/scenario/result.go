package scenario

import (
	"strings"
	"time"
)

// Outcome is the final state of a case.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Skipped
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Errored:
		return "errored"
	}
	return "unknown"
}

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID   TestID
	Outcome  Outcome
	Errors   []error
	Detail   string
	Duration time.Duration
}

// OK returns true if no case Failed or Errored.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Count returns the number of cases with the given outcome.
func (r Results) Count(outcome Outcome) int {
	n := 0
	for _, t := range r.Tests {
		if t.Outcome == outcome {
			n++
		}
	}
	return n
}

// Find returns the result for a test ID, if that case was recorded.
func (r Results) Find(id TestID) (TestResult, bool) {
	for _, t := range r.Tests {
		if t.TestID.String() == id.String() {
			return t, true
		}
	}
	return TestResult{}, false
}

// MergeResults concatenates results in the order given.
func MergeResults(all ...Results) Results {
	var ret Results
	for _, r := range all {
		ret.Tests = append(ret.Tests, r.Tests...)
		ret.Failures = append(ret.Failures, r.Failures...)
	}
	return ret
}

func (r *Results) add(result TestResult) {
	r.Tests = append(r.Tests, result)
	if result.Outcome == Failed || result.Outcome == Errored {
		r.Failures = append(r.Failures, result)
	}
}

type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

// Environment returns the first component of the ID, which is the environment name for a
// catalog run.
func (t TestID) Environment() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// SuitePath returns the components between the environment and the case name.
func (t TestID) SuitePath() string {
	if len(t) < 3 {
		return ""
	}
	return strings.Join(t[1:len(t)-1], "/")
}

// Name returns the last component of the ID.
func (t TestID) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}
