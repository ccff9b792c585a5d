package catalogtests

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/libcatalog/catalog-test-harness/environments"
	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/harness"
	h "github.com/libcatalog/catalog-test-harness/framework/helpers"
)

// Subcheck names one part of the readiness gate.
type Subcheck string

const (
	SubcheckLandmark      Subcheck = "landmark"
	SubcheckCookie        Subcheck = "cookie"
	SubcheckForbiddenText Subcheck = "forbidden text"
)

const excerptRadius = 30

// GateResult is the non-fault outcome of ReadinessGate.Check. When Passed is false, Subcheck
// says which part of the gate failed and Mismatch says how.
type GateResult struct {
	Passed   bool
	Subcheck Subcheck
	Mismatch framework.AssertionMismatch
}

// Detail describes the failure, or returns an empty string if the gate passed.
func (r GateResult) Detail() string {
	if r.Passed {
		return ""
	}
	return r.Mismatch.Error()
}

// Err returns nil if the gate passed, or an error that makes a case Failed otherwise.
func (r GateResult) Err() error {
	if r.Passed {
		return nil
	}
	return r.Mismatch
}

// ReadinessGate is the precondition checked after every navigation: the application has fully
// loaded, the sentinel cookie is intact, and no placeholder data leaked into the page.
//
// Check only reads from the session, so it can be run any number of times.
type ReadinessGate struct {
	Landmark        harness.Selector
	LandmarkTimeout time.Duration
	PollInterval    time.Duration

	// ForbiddenText must not occur in the body text. If empty, the body is not checked.
	ForbiddenText string
}

// NewReadinessGate creates a gate from the run-wide settings.
func NewReadinessGate(settings environments.Settings) ReadinessGate {
	return ReadinessGate{
		Landmark:        settings.Landmark,
		LandmarkTimeout: settings.LandmarkTimeout,
		PollInterval:    settings.PollInterval,
		ForbiddenText:   settings.ForbiddenText,
	}
}

// Check runs the sub-checks in order and stops at the first one that fails. The cookie sub-check
// only runs if the descriptor declares a sentinel cookie. An error return is a fault from the
// session (a bad landmark selector, a crashed browser), never a failed sub-check.
func (g ReadinessGate) Check(
	ctx context.Context,
	session *harness.Session,
	descriptor environments.Descriptor,
) (GateResult, error) {
	result, err := h.WaitFor(ctx, func(ctx context.Context) (int, bool, error) {
		els, err := session.Query(ctx, g.Landmark)
		return len(els), len(els) > 0, err
	}, g.LandmarkTimeout, g.PollInterval)
	if err != nil {
		return GateResult{}, err
	}
	if !result.IsFound() {
		return fail(SubcheckLandmark, fmt.Sprintf("landmark %s", g.Landmark),
			fmt.Sprintf("present within %s", g.LandmarkTimeout), "absent"), nil
	}

	if descriptor.HasCookieExpectation() {
		name, expected := descriptor.Expected.CookieName.Value(), descriptor.Expected.CookieValue.Value()
		actual, err := session.Cookie(ctx, name)
		if err != nil {
			return GateResult{}, err
		}
		what := fmt.Sprintf("cookie %q", name)
		switch value, ok := actual.Get(); {
		case !ok:
			return fail(SubcheckCookie, what, fmt.Sprintf("%q", expected), "absent"), nil
		case value != expected:
			return fail(SubcheckCookie, what, fmt.Sprintf("%q", expected), fmt.Sprintf("%q", value)), nil
		}
	}

	if g.ForbiddenText != "" {
		body, err := session.BodyText(ctx)
		if err != nil {
			return GateResult{}, err
		}
		if i := strings.Index(body, g.ForbiddenText); i >= 0 {
			return fail(SubcheckForbiddenText, "page body",
				fmt.Sprintf("no occurrence of %q", g.ForbiddenText),
				fmt.Sprintf("%q", excerpt(body, i, len(g.ForbiddenText)))), nil
		}
	}

	return GateResult{Passed: true}, nil
}

func fail(subcheck Subcheck, what string, expected, actual interface{}) GateResult {
	return GateResult{
		Subcheck: subcheck,
		Mismatch: framework.AssertionMismatch{
			What:     fmt.Sprintf("readiness %s: %s", subcheck, what),
			Expected: expected,
			Actual:   actual,
		},
	}
}

// excerpt returns the text around body[start:start+length], with ellipses where it was cut.
func excerpt(body string, start, length int) string {
	from := start - excerptRadius
	to := start + length + excerptRadius
	prefix, suffix := "...", "..."
	if from <= 0 {
		from, prefix = 0, ""
	}
	if to >= len(body) {
		to, suffix = len(body), ""
	}
	for from > 0 && !utf8.RuneStart(body[from]) {
		from--
	}
	for to < len(body) && !utf8.RuneStart(body[to]) {
		to++
	}
	return prefix + body[from:to] + suffix
}
