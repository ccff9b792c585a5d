package scenario

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/libcatalog/catalog-test-harness/framework"
)

const (
	filteredReason        = "excluded by filter parameters"
	budgetExhaustedReason = "run budget exhausted"
)

type environment struct {
	config  TestConfiguration
	ctx     context.Context
	results Results
	tokens  map[string]bool
}

func (e *environment) budgetExhausted() bool {
	return e.ctx.Err() != nil
}

func (e *environment) filteredOut(id TestID) bool {
	if e.config.Filter == nil || e.config.Filter.Match(id) {
		return false
	}
	e.config.TestLogger.TestStarted(id)
	e.config.TestLogger.TestSkipped(id, filteredReason)
	return true
}

func (e *environment) skip(id TestID, reason string) {
	e.config.TestLogger.TestStarted(id)
	e.results.add(TestResult{TestID: id, Outcome: Skipped, Detail: reason})
	e.config.TestLogger.TestSkipped(id, reason)
}

// T represents a test scope. It is very similar to Go's testing.T type.
//
// Every case body and every suite setup function gets its own T. A T must only be used from the
// goroutine that runs its scope.
type T struct {
	env         *environment
	id          TestID
	isCase      bool
	debugLogger framework.CapturingLogger
	setupValue  interface{}
	failed      bool
	errored     bool
	skipped     bool
	skipReason  string
	cleanups    []func()
	errors      []error
	helperFns   []string
}

// TestConfiguration contains options for one run of a scenario tree.
type TestConfiguration struct {
	// Filter is an optional function for determining which tests to run based on their names.
	Filter Filter

	// TestLogger receives status information about each case.
	TestLogger TestLogger

	// Context bounds the whole run. When it is cancelled or its deadline passes, the case that
	// is running becomes Errored and every later case is Skipped.
	Context context.Context
}

// Run starts a top-level test scope.
func Run(
	config TestConfiguration,
	action func(*T),
) Results {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	ctx := config.Context
	if ctx == nil {
		ctx = context.Background()
	}
	env := &environment{
		config: config,
		ctx:    ctx,
		tokens: make(map[string]bool),
	}
	t := &T{env: env}
	result := t.run(action)
	t.runCleanups()
	if result.Outcome == Failed || result.Outcome == Errored {
		env.results.add(result)
	}
	return env.results
}

// Execute traverses a scenario tree depth-first, in declaration order.
func Execute(config TestConfiguration, root Node) Results {
	return Run(config, func(t *T) {
		t.RunNode(root)
	})
}

func (t *T) child(id TestID, isCase bool) *T {
	return &T{
		env:        t.env,
		id:         id,
		isCase:     isCase,
		setupValue: t.setupValue,
	}
}

func (t *T) run(action func(*T)) (result TestResult) {
	result.TestID = t.id
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			var addError error
			if _, ok := r.(*T); ok {
				if !t.skipped && !t.errored && len(t.errors) == 0 {
					t.failed = true
					addError = errors.New("test failed with no failure message")
				}
			} else {
				t.errored = true
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				t.errors = append(t.errors, addError)
				t.reportError(addError)
			}
		}
		if t.failed && !t.errored && t.env.budgetExhausted() {
			t.errored = true
			budgetErr := framework.InfrastructureFault{Op: budgetExhaustedReason, Err: t.env.ctx.Err()}
			t.errors = append(t.errors, budgetErr)
			t.reportError(budgetErr)
		}
		result.Duration = time.Since(start)
		result.Errors = t.errors
		result.Outcome = t.outcome()
		if result.Outcome == Skipped {
			result.Detail = t.skipReason
		} else {
			result.Detail = errorsSummary(t.errors)
		}
	}()

	action(t)
	return result
}

// reportError passes an error to the TestLogger as soon as it happens. Errors in a suite's setup
// are not reported this way, since they surface as the skip reason of every case under it.
func (t *T) reportError(err error) {
	if t.isCase {
		t.env.config.TestLogger.TestError(t.id, err)
	}
}

func (t *T) outcome() Outcome {
	switch {
	case t.skipped:
		return Skipped
	case t.errored:
		return Errored
	case t.failed:
		return Failed
	}
	return Passed
}

func (t *T) runCleanups() {
	for i := len(t.cleanups) - 1; i >= 0; i-- {
		t.cleanups[i]()
	}
	t.cleanups = nil
}

func errorsSummary(errs []error) string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, strings.SplitN(e.Error(), "\n", 2)[0])
	}
	return strings.Join(messages, "; ")
}

// ID returns the full name of the current test.
func (t *T) ID() TestID {
	return t.id
}

// Context returns the run's context. Every blocking call a case makes should observe it, so that
// an exhausted run budget interrupts the case.
func (t *T) Context() context.Context {
	return t.env.ctx
}

// Run runs a case in its own scope.
//
// This is equivalent to Go's testing.T.Run.
func (t *T) Run(name string, action func(*T)) {
	id := t.id.Plus(name)

	if t.env.filteredOut(id) {
		return
	}
	if t.env.budgetExhausted() {
		t.env.skip(id, budgetExhaustedReason)
		return
	}

	t.env.config.TestLogger.TestStarted(id)
	c1 := t.child(id, true)
	t.debugLogger.AddChildLogger(&c1.debugLogger) // see comments on t.DebugLogger()
	result := c1.run(action)
	c1.runCleanups()
	t.debugLogger.RemoveChildLogger(&c1.debugLogger)
	t.env.results.add(result)
	if result.Outcome == Skipped {
		t.env.config.TestLogger.TestSkipped(id, c1.skipReason)
	} else {
		t.env.config.TestLogger.TestFinished(id, result, c1.debugLogger.Output())
	}
}

// RunNode runs a suite or a case beneath the current scope.
func (t *T) RunNode(node Node) {
	if node.IsCase() {
		t.Run(node.Name, node.Body)
		return
	}
	t.runSuite(node)
}

func (t *T) runSuite(node Node) {
	id := t.id.Plus(node.Name)

	if t.env.filteredOut(id) {
		return
	}
	if t.env.budgetExhausted() {
		t.skipAll(node.Children, id, budgetExhaustedReason)
		return
	}

	s := t.child(id, false)
	t.debugLogger.AddChildLogger(&s.debugLogger)
	defer t.debugLogger.RemoveChildLogger(&s.debugLogger)
	defer s.runCleanups()

	if node.Setup != nil {
		var value interface{}
		result := s.run(func(s *T) {
			v, err := node.Setup(s)
			if err != nil {
				s.Fault(err)
			}
			value = v
		})
		switch result.Outcome {
		case Passed:
			s.setupValue = value
		case Skipped:
			s.skipAll(node.Children, id, result.Detail)
			return
		default:
			s.skipAll(node.Children, id, fmt.Sprintf("setup of %q failed: %s", id.String(), result.Detail))
			return
		}
	}

	for _, c := range node.Children {
		s.RunNode(c)
	}
}

func (t *T) skipAll(nodes []Node, parent TestID, reason string) {
	for _, n := range nodes {
		for _, id := range n.CaseIDs(parent) {
			if !t.env.filteredOut(id) {
				t.env.skip(id, reason)
			}
		}
	}
}

// Errorf reports a test failure. It is equivalent to Go's testing.T.Errorf. It does not cause the test
// to terminate, but adds the failure message to the output and marks the test as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) Errorf(format string, args ...interface{}) {
	t.failed = true
	err := fmt.Errorf(format, args...)

	stacktrace := getStacktrace(false, t.helperFns)
	err = transformError(err, stacktrace)

	t.errors = append(t.errors, err)
	t.reportError(err)
}

// FailNow causes the test to immediately terminate and be marked as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) FailNow() {
	panic(t)
}

// Fault terminates the test because of an error. An AssertionMismatch or a timeout makes the
// test Failed; anything else (a navigation fault, a bad selector, a broken browser) makes it
// Errored.
func (t *T) Fault(err error) {
	if framework.IsFailure(err) {
		t.Errorf("%s", err)
		t.FailNow()
	}
	t.errored = true
	t.errors = append(t.errors, err)
	t.reportError(err)
	panic(t)
}

// Skip causes the test to immediately terminate and be marked as skipped.
func (t *T) Skip() {
	t.skipped = true
	panic(t)
}

// SkipWithReason is equivalent to Skip but provides a message.
func (t *T) SkipWithReason(reason string) {
	t.skipReason = reason
	t.Skip()
}

// SetupValue returns the value produced by the setup function of the nearest enclosing suite
// that has one, or nil.
func (t *T) SetupValue() interface{} {
	return t.setupValue
}

// Grant records that the session now has the named state, such as being signed in. Later cases
// in the same run can depend on it with Require.
func (t *T) Grant(token string) {
	t.env.tokens[token] = true
}

// Revoke removes a state recorded by Grant.
func (t *T) Revoke(token string) {
	delete(t.env.tokens, token)
}

// Has returns true if an earlier scope granted the token and it has not been revoked.
func (t *T) Has(token string) bool {
	return t.env.tokens[token]
}

// Require fails the test immediately unless an earlier scope granted the token.
func (t *T) Require(token string) {
	if !t.Has(token) {
		t.Errorf("requires session state %q, which no earlier case established", token)
		t.FailNow()
	}
}

// Debug writes a message to the output for this test scope.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

// DebugLogger returns a Logger instance for writing output for this test scope.
//
// The output that is captured for a test will be passed to TestLogger.TestFinished at the end of
// the test. The test runner can choose whether to display this or not based on command-line options.
//
// When a suite has cases, the logger for a case starts out with a copy of any output that was
// already logged for the suite. During the lifetime of the case, any further output that is sent
// to the suite's logger will go to the case's logger instead. This is useful when the suite's
// setup creates an object, such as a browser session, that is reused by many cases.
func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}

// Defer schedules a cleanup function which is guaranteed to be called when this test scope
// exits for any reason. For a suite, that is after all of its children have run. Unlike a Go
// defer statement, Defer can be used from within helper functions.
func (t *T) Defer(cleanupFn func()) {
	t.cleanups = append(t.cleanups, cleanupFn)
}

// Helper marks the function that calls it as a test helper that shouldn't appear in stacktraces.
// Equivalent to Go's testing.T.Helper().
func (t *T) Helper() {
	pc, _, _, ok := runtime.Caller(1) // 0 is Helper() itself, 1 is who called it
	if !ok {
		return
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return
	}
	t.helperFns = append(t.helperFns, f.Name())
}
