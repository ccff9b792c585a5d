package scenario

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
)

// Filter is a function that can determine whether to run a specific test or not.
type Filter func(TestID) bool

// Match lets a plain function be used wherever RegexFilters is.
func (f Filter) Match(id TestID) bool { return f(id) }

// RegexFilters selects tests by matching each slash-separated component of the test ID
// against the corresponding component of a pattern.
type RegexFilters struct {
	MustMatch    TestIDPatternList
	MustNotMatch TestIDPatternList
}

func (r RegexFilters) Match(id TestID) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(id, true)) &&
		!r.MustNotMatch.AnyMatch(id, false)
}

// AsFilter returns nil if no patterns are defined, so that filtering can be skipped entirely.
func (r RegexFilters) AsFilter() Filter {
	if !r.MustMatch.IsDefined() && !r.MustNotMatch.IsDefined() {
		return nil
	}
	return r.Match
}

type TestIDPattern []*regexp.Regexp

func (p TestIDPattern) Match(id TestID, includeParents bool) bool {
	min := len(p)
	if min > len(id) {
		if !includeParents {
			return false
		}
		min = len(id)
	}
	for i := 0; i < min; i++ {
		if !p[i].MatchString(id[i]) {
			return false
		}
	}
	return true
}

func (p TestIDPattern) String() string {
	ss := make([]string, 0, len(p))
	for _, c := range p {
		ss = append(ss, c.String())
	}
	return strings.Join(ss, "/")
}

func ParseTestIDPattern(s string) (TestIDPattern, error) {
	parts := strings.Split(s, "/")
	ret := make(TestIDPattern, 0, len(parts))
	for _, part := range parts {
		rx, err := regexp.Compile(part)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		ret = append(ret, rx)
	}
	return ret, nil
}

// TestIDPatternList implements pflag.Value, so it can be bound directly to a repeatable flag.
type TestIDPatternList []TestIDPattern

var _ pflag.Value = (*TestIDPatternList)(nil)

func (l TestIDPatternList) String() string {
	ss := make([]string, 0, len(l))
	for _, p := range l {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (l *TestIDPatternList) Set(value string) error {
	p, err := ParseTestIDPattern(value)
	if err != nil {
		return err
	}
	*l = append(*l, p)
	return nil
}

func (l *TestIDPatternList) Type() string { return "pattern" }

func (l TestIDPatternList) IsDefined() bool {
	return len(l) != 0
}

func (l TestIDPatternList) AnyMatch(id TestID, includeParents bool) bool {
	for _, p := range l {
		if p.Match(id, includeParents) {
			return true
		}
	}
	return false
}

// LoadSuppressions reads test IDs, one per line, and adds each as a literal MustNotMatch
// pattern. Blank lines are ignored. The format is the one written by WriteFailures.
func (r *RegexFilters) LoadSuppressions(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		escaped := make([]string, 0)
		for _, part := range strings.Split(line, "/") {
			escaped = append(escaped, "^"+regexp.QuoteMeta(part)+"$")
		}
		if err := r.MustNotMatch.Set(strings.Join(escaped, "/")); err != nil {
			return fmt.Errorf("cannot parse suppression: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("while processing suppression file: %w", err)
	}
	return nil
}

// WriteFailures writes the ID of every Failed or Errored case, one per line.
func WriteFailures(out io.Writer, results Results) error {
	for _, f := range results.Failures {
		if len(f.TestID) == 0 {
			continue
		}
		if _, err := fmt.Fprintln(out, f.TestID); err != nil {
			return err
		}
	}
	return nil
}

func PrintFilterDescription(out io.Writer, filters RegexFilters) {
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Fprintln(out, "Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Fprintln(out)
	}
}
