package environments

import (
	"fmt"
	"strings"
)

// ConfigurationError means the environments file could not be used. It is returned before any
// scenario runs, and lists every problem that was found rather than only the first.
type ConfigurationError struct {
	Source   string
	Problems []string
}

func (e ConfigurationError) Error() string {
	source := e.Source
	if source == "" {
		source = "environments configuration"
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", source, e.Problems[0])
	}
	return fmt.Sprintf("%s: %d problems:\n  %s", source, len(e.Problems), strings.Join(e.Problems, "\n  "))
}
