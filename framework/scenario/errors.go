package scenario

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

const maxStackDepth = 64

// ErrorWithStacktrace is a failure reported through T.Errorf, along with the location in the
// case body where it happened.
type ErrorWithStacktrace struct {
	Message    string
	Stacktrace []StacktraceInfo
}

// StacktraceInfo is one frame of an ErrorWithStacktrace.
type StacktraceInfo struct {
	FileName string
	Package  string
	Function string
	Line     int
}

func (e ErrorWithStacktrace) Error() string { return e.Message }

func (s StacktraceInfo) String() string {
	return fmt.Sprintf("%s.%s (%s:%d)",
		strings.TrimPrefix(s.Package, moduleName()+"/"), s.Function, s.FileName, s.Line)
}

// testify's assert functions put their own trace in front of the message.
var testifyTraceRegex = regexp.MustCompile(`^(?s:\s*Error Trace:.*\sError:\s*)`)

func transformError(err error, stacktrace []StacktraceInfo) error {
	message := err.Error()
	if testifyTraceRegex.MatchString(message) {
		message = strings.TrimSpace(testifyTraceRegex.ReplaceAllLiteralString(message, ""))
	}
	if len(stacktrace) == 0 {
		return errors.New(message)
	}
	return ErrorWithStacktrace{Message: message, Stacktrace: stacktrace}
}

var currentPackageName = sync.OnceValue(func() string { //nolint:gochecknoglobals
	pc, _, _, _ := runtime.Caller(0)
	if f := runtime.FuncForPC(pc); f != nil {
		pkg, _ := parsePackageAndFunctionName(f.Name())
		return pkg
	}
	return "?"
})

func moduleName() string {
	parts := strings.SplitN(currentPackageName(), "/", 4)
	return strings.Join(parts[:min(3, len(parts))], "/")
}

// getStacktrace returns the frames above its caller, stopping at the top-level Run of this
// package. Frames from this package are dropped unless includeScenarioCode is set, as are
// functions registered with T.Helper.
func getStacktrace(includeScenarioCode bool, helperFns []string) []StacktraceInfo {
	pcs := make([]uintptr, maxStackDepth)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(2, pcs)])
	scenarioPackage := currentPackageName()

	var ret []StacktraceInfo
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			pkg, fn := parsePackageAndFunctionName(frame.Function)
			if pkg == scenarioPackage && fn == "Run" {
				break
			}
			if (includeScenarioCode || pkg != scenarioPackage) && !slices.Contains(helperFns, frame.Function) {
				ret = append(ret, StacktraceInfo{
					FileName: filepath.Base(frame.File),
					Package:  pkg,
					Function: fn,
					Line:     frame.Line,
				})
			}
		}
		if !more {
			break
		}
	}
	return ret
}

// parsePackageAndFunctionName splits a name like "example.com/a/b.(*T).Run" into
// "example.com/a/b" and "(*T).Run".
func parsePackageAndFunctionName(fullName string) (string, string) {
	lastSlash := strings.LastIndex(fullName, "/")
	dot := strings.Index(fullName[lastSlash+1:], ".")
	if dot < 0 {
		return fullName, ""
	}
	split := lastSlash + 1 + dot
	return fullName[:split], fullName[split+1:]
}
