package scenario

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/libcatalog/catalog-test-harness/framework"
)

var consoleTestErrorColor = color.New(color.FgYellow)              //nolint:gochecknoglobals
var consoleTestFailedColor = color.New(color.FgRed)                //nolint:gochecknoglobals
var consoleTestErroredColor = color.New(color.FgMagenta)           //nolint:gochecknoglobals
var consoleTestSkippedColor = color.New(color.Faint, color.FgBlue) //nolint:gochecknoglobals
var consoleDebugOutputColor = color.New(color.Faint)               //nolint:gochecknoglobals
var allTestsPassedColor = color.New(color.FgGreen)                 //nolint:gochecknoglobals

// TestLogger receives status information about each case as the run progresses. Implementations
// must be safe for concurrent use, since environments may run in parallel.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput)
	TestSkipped(id TestID, reason string)
	EndLog(results Results) error
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                                        {}
func (n nullTestLogger) TestError(TestID, error)                                   {}
func (n nullTestLogger) TestFinished(TestID, TestResult, framework.CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                                {}
func (n nullTestLogger) EndLog(Results) error                                      { return nil }

// MultiTestLogger forwards every call to each of its loggers in order.
type MultiTestLogger struct {
	Loggers []TestLogger
}

func (m *MultiTestLogger) TestStarted(id TestID) {
	for _, l := range m.Loggers {
		l.TestStarted(id)
	}
}

func (m *MultiTestLogger) TestError(id TestID, err error) {
	for _, l := range m.Loggers {
		l.TestError(id, err)
	}
}

func (m *MultiTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	for _, l := range m.Loggers {
		l.TestFinished(id, result, debugOutput)
	}
}

func (m *MultiTestLogger) TestSkipped(id TestID, reason string) {
	for _, l := range m.Loggers {
		l.TestSkipped(id, reason)
	}
}

func (m *MultiTestLogger) EndLog(results Results) error {
	var errs []string
	for _, l := range m.Loggers {
		if err := l.EndLog(results); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) != 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// ConsoleTestLogger writes human-readable progress. Output from concurrently running
// environments is serialized per call, so lines never interleave mid-line.
type ConsoleTestLogger struct {
	Out                  io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
	lock                 sync.Mutex
}

func (c *ConsoleTestLogger) TestStarted(id TestID) {
	c.lock.Lock()
	defer c.lock.Unlock()
	fmt.Fprintf(c.Out, "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id TestID, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, line := range strings.Split(err.Error(), "\n") {
		_, _ = consoleTestErrorColor.Fprintf(c.Out, "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	c.lock.Lock()
	defer c.lock.Unlock()
	failed := result.Outcome != Passed
	switch result.Outcome {
	case Failed:
		_, _ = consoleTestFailedColor.Fprintf(c.Out, "  FAILED: %s\n", id)
	case Errored:
		_, _ = consoleTestErroredColor.Fprintf(c.Out, "  ERRORED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		_, _ = consoleDebugOutputColor.Fprintln(c.Out, debugOutput.ToString("    DEBUG "))
	}
}

func (c *ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if reason == "" {
		_, _ = consoleTestSkippedColor.Fprintf(c.Out, "  SKIPPED: %s\n", id)
	} else {
		_, _ = consoleTestSkippedColor.Fprintf(c.Out, "  SKIPPED: %s (%s)\n", id, reason)
	}
}

func (c *ConsoleTestLogger) EndLog(results Results) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	fmt.Fprintln(c.Out)
	PrintResults(c.Out, results)
	return nil
}

// PrintResults writes a summary of the run.
func PrintResults(out io.Writer, results Results) {
	fmt.Fprintf(out, "%d passed, %d failed, %d errored, %d skipped\n",
		results.Count(Passed), results.Count(Failed), results.Count(Errored), results.Count(Skipped))
	if results.OK() {
		_, _ = allTestsPassedColor.Fprintln(out, "All tests passed")
		return
	}
	_, _ = consoleTestFailedColor.Fprintf(out, "FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		_, _ = consoleTestFailedColor.Fprintf(out, "  * %s (%s)\n", f.TestID, f.Outcome)
	}
}
