package framework

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"
)

const capturedTimeFormat = "15:04:05.000"

// Logger is the minimal output interface used by harness components and test scopes.
type Logger interface {
	Println(args ...interface{})
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (nullLogger) Println(...interface{})        {}
func (nullLogger) Printf(string, ...interface{}) {}

// NullLogger returns a Logger that discards everything.
func NullLogger() Logger { return nullLogger{} }

// NewProcessLogger creates the structured logger used for run-level messages (environment
// start and finish, bootstrap, session cleanup). Per-test output goes to CapturingLogger
// instead.
func NewProcessLogger(out io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(out, log.Options{
		Level:           level,
		Prefix:          "harness",
		TimeFormat:      time.TimeOnly,
		ReportTimestamp: true,
	})
}

type structuredLogger struct {
	base *log.Logger
}

// AsLogger adapts a structured logger to the Logger interface. Everything written through the
// adapter is logged at debug level.
func AsLogger(base *log.Logger) Logger {
	if base == nil {
		return NullLogger()
	}
	return structuredLogger{base}
}

func (s structuredLogger) Println(args ...interface{}) {
	s.base.Debug(sprintln(args...))
}

func (s structuredLogger) Printf(message string, args ...interface{}) {
	s.base.Debugf(message, args...)
}

func sprintln(args ...interface{}) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}

// CapturedMessage is one line of debug output from a test scope.
type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// ToString renders the output one message per line, each starting with prefix and a timestamp.
func (output CapturedOutput) ToString(prefix string) string {
	var b strings.Builder
	for i, m := range output {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s[%s] %s", prefix, m.Time.Format(capturedTimeFormat), m.Message)
	}
	return b.String()
}

// CapturingLogger records the debug output of a test scope.
//
// While a suite is running one of its cases, the case's logger is attached as a child of the
// suite's logger. A child starts with a copy of everything the parent has captured so far, and
// anything written to the parent while the child is attached goes to the child instead. This is
// how messages from a shared browser session end up in the output of the case that caused them.
type CapturingLogger struct {
	output   CapturedOutput
	children []*CapturingLogger
	lock     sync.Mutex
}

func (l *CapturingLogger) Println(args ...interface{}) {
	l.capture(CapturedMessage{Time: time.Now(), Message: sprintln(args...)})
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.capture(CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
}

func (l *CapturingLogger) capture(m CapturedMessage) {
	l.lock.Lock()
	children := slices.Clone(l.children)
	if len(children) == 0 {
		l.output = append(l.output, m)
	}
	l.lock.Unlock()
	for _, c := range children {
		c.capture(m)
	}
}

// Output returns a copy of everything captured so far.
func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	defer l.lock.Unlock()
	return slices.Clone(l.output)
}

func (l *CapturingLogger) AddChildLogger(child *CapturingLogger) {
	l.lock.Lock()
	l.children = append(l.children, child)
	inherited := slices.Clone(l.output)
	l.lock.Unlock()

	child.lock.Lock()
	child.output = append(inherited, child.output...)
	child.lock.Unlock()
}

func (l *CapturingLogger) RemoveChildLogger(child *CapturingLogger) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if i := slices.Index(l.children, child); i >= 0 {
		l.children = slices.Delete(l.children, i, i+1)
	}
}
