package scenario

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/libcatalog/catalog-test-harness/framework"
)

// JUnitTestLogger writes a JUnit XML report in EndLog. Each environment becomes one testsuite
// element, and each case one testcase element in the order the cases were started.
type JUnitTestLogger struct {
	filePath   string
	properties map[string]string
	filters    RegexFilters
	order      []TestID
	output     map[string]string
	skipped    map[string]string
	lock       sync.Mutex
}

// Struct definitions for the JUnit XML schema - see https://github.com/jstemmer/go-junit-report

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName    xml.Name           `xml:"testsuite"`
	Tests      int                `xml:"tests,attr"`
	Failures   int                `xml:"failures,attr"`
	Errors     int                `xml:"errors,attr"`
	Skipped    int                `xml:"skipped,attr"`
	Time       string             `xml:"time,attr"`
	Name       string             `xml:"name,attr"`
	Properties []jUnitXMLProperty `xml:"properties>property,omitempty"`
	TestCases  []jUnitXMLTestCase `xml:"testcase"`
}

type jUnitXMLTestCase struct {
	XMLName     xml.Name             `xml:"testcase"`
	Classname   string               `xml:"classname,attr"`
	Name        string               `xml:"name,attr"`
	Time        string               `xml:"time,attr"`
	SkipMessage *jUnitXMLSkipMessage `xml:"skipped,omitempty"`
	Failure     *jUnitXMLFailure     `xml:"failure,omitempty"`
	Error       *jUnitXMLFailure     `xml:"error,omitempty"`
}

type jUnitXMLSkipMessage struct {
	Message string `xml:"message,attr"`
}

type jUnitXMLProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// NewJUnitTestLogger creates a JUnitTestLogger. The properties, along with a description of the
// filters, are copied into every testsuite element.
func NewJUnitTestLogger(
	filePath string,
	properties map[string]string,
	filters RegexFilters,
) *JUnitTestLogger {
	return &JUnitTestLogger{
		filePath:   filePath,
		properties: properties,
		filters:    filters,
		output:     make(map[string]string),
		skipped:    make(map[string]string),
	}
}

func (j *JUnitTestLogger) TestStarted(id TestID) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.order = append(j.order, id)
}

// TestError does nothing, since the errors are taken from the Results passed to EndLog.
func (j *JUnitTestLogger) TestError(TestID, error) {}

func (j *JUnitTestLogger) TestFinished(id TestID, _ TestResult, debugOutput framework.CapturedOutput) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.output[id.String()] = debugOutput.ToString("")
}

// TestSkipped records the reason for cases that the filters excluded. Those never appear in
// Results.
func (j *JUnitTestLogger) TestSkipped(id TestID, reason string) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.skipped[id.String()] = reason
}

func (j *JUnitTestLogger) EndLog(results Results) error {
	j.lock.Lock()
	defer j.lock.Unlock()

	data, err := xml.MarshalIndent(j.document(results), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.filePath, append(data, '\n'), 0644) //nolint:gosec
}

func (j *JUnitTestLogger) document(results Results) jUnitXMLDocument {
	byID := make(map[string]TestResult, len(results.Tests))
	for _, r := range results.Tests {
		byID[r.TestID.String()] = r
	}

	var doc jUnitXMLDocument
	suites := make(map[string]*jUnitXMLTestSuite)
	var suiteNames []string
	durations := make(map[string]time.Duration)

	for _, id := range j.order {
		env := id.Environment()
		suite := suites[env]
		if suite == nil {
			suite = &jUnitXMLTestSuite{
				Name:       fmt.Sprintf("Catalog verification: %s", env),
				Properties: j.suiteProperties(),
			}
			suites[env] = suite
			suiteNames = append(suiteNames, env)
		}

		result, ok := byID[id.String()]
		if !ok {
			result = TestResult{TestID: id, Outcome: Skipped, Detail: j.skipped[id.String()]}
		}
		durations[env] += result.Duration

		testCase := jUnitXMLTestCase{
			Classname: env,
			Name:      strings.Join(id[1:], "/"),
			Time:      jUnitDurationString(result.Duration),
		}
		switch result.Outcome {
		case Skipped:
			suite.Skipped++
			testCase.SkipMessage = &jUnitXMLSkipMessage{Message: result.Detail}
		case Failed:
			suite.Failures++
			testCase.Failure = j.failureElement(result, "assertion")
		case Errored:
			suite.Errors++
			testCase.Error = j.failureElement(result, "fault")
		}
		suite.Tests++
		suite.TestCases = append(suite.TestCases, testCase)
	}

	for _, name := range suiteNames {
		suites[name].Time = jUnitDurationString(durations[name])
		doc.Suites = append(doc.Suites, *suites[name])
	}
	return doc
}

func (j *JUnitTestLogger) suiteProperties() []jUnitXMLProperty {
	ret := []jUnitXMLProperty{
		{Name: "tests.filter.mustMatch", Value: j.filters.MustMatch.String()},
		{Name: "tests.filter.mustNotMatch", Value: j.filters.MustNotMatch.String()},
	}
	names := maps.Keys(j.properties)
	slices.Sort(names)
	for _, name := range names {
		ret = append(ret, jUnitXMLProperty{Name: name, Value: j.properties[name]})
	}
	return ret
}

func (j *JUnitTestLogger) failureElement(result TestResult, kind string) *jUnitXMLFailure {
	messages := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		message := e.Error()
		if es, ok := e.(ErrorWithStacktrace); ok {
			message += "\n  Stacktrace:"
			for _, s := range es.Stacktrace {
				message += "\n    " + s.String()
			}
		}
		messages = append(messages, message)
	}
	return &jUnitXMLFailure{
		Message:  strings.Join(messages, "\n"),
		Type:     kind,
		Contents: j.output[result.TestID.String()],
	}
}

func jUnitDurationString(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
