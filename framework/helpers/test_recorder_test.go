package helpers

import (
	"errors"
	"fmt"
	"strings"
)

// testRecorder is a TestContext that records failures instead of reporting them.
type testRecorder struct {
	Errors           []string
	Terminated       bool
	PanicOnTerminate bool
}

var _ TestContext = (*testRecorder)(nil)

func (t *testRecorder) Errorf(msgFormat string, msgArgs ...interface{}) {
	t.Errors = append(t.Errors, fmt.Sprintf(msgFormat, msgArgs...))
}

func (t *testRecorder) FailNow() {
	t.Terminated = true
	if t.PanicOnTerminate {
		panic(t)
	}
}

// Err returns all recorded failure messages as a single error, or nil if there were none.
func (t *testRecorder) Err() error {
	if len(t.Errors) == 0 {
		return nil
	}
	return errors.New(strings.Join(t.Errors, ", "))
}
