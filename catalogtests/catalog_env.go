package catalogtests

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/libcatalog/catalog-test-harness/environments"
	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/harness"
	h "github.com/libcatalog/catalog-test-harness/framework/helpers"
	"github.com/libcatalog/catalog-test-harness/framework/scenario"
)

// CatalogEnv is everything a case body needs to check one environment: the descriptor, the flags
// as they were resolved before the run started, and the session that every case shares.
type CatalogEnv struct {
	Descriptor environments.Descriptor
	Flags      framework.ResolvedFlags
	Settings   environments.Settings
	Session    *harness.Session
	Gate       ReadinessGate
}

// NewCatalogEnv resolves the descriptor's flags. They are not resolved again for the lifetime of
// the returned value.
func NewCatalogEnv(
	descriptor environments.Descriptor,
	settings environments.Settings,
	session *harness.Session,
) *CatalogEnv {
	return &CatalogEnv{
		Descriptor: descriptor,
		Flags:      framework.ResolveFlags(descriptor.FeatureFlags),
		Settings:   settings,
		Session:    session,
		Gate:       NewReadinessGate(settings),
	}
}

// pick returns this environment's alternative, or skips the case if the check does not apply to
// its UI generation.
func pick[V any](t *scenario.T, env *CatalogEnv, alternatives framework.Alternatives[V]) V {
	t.Helper()
	choice := alternatives.For(env.Flags.Generation)
	if !choice.IsDefined() {
		t.SkipWithReason(fmt.Sprintf("not applicable to the %s interface", env.Flags.Generation))
	}
	return choice.Value()
}

// NavigateTo loads a page relative to the base URL and then runs the readiness gate.
func (e *CatalogEnv) NavigateTo(t *scenario.T, path string) {
	t.Helper()
	e.navigateAndCheck(t, e.Descriptor.URL(path))
}

// NavigateToRecord loads a record page and then runs the readiness gate.
func (e *CatalogEnv) NavigateToRecord(t *scenario.T, id environments.RecordID) {
	t.Helper()
	e.navigateAndCheck(t, e.Descriptor.RecordURL(id))
}

func (e *CatalogEnv) navigateAndCheck(t *scenario.T, url string) {
	t.Helper()
	t.Debug("navigating to %s", url)
	if err := e.Session.Navigate(t.Context(), url); err != nil {
		t.Fault(err)
	}
	e.CheckReady(t)
}

// CheckReady runs the readiness gate against whatever page is currently loaded.
func (e *CatalogEnv) CheckReady(t *scenario.T) {
	t.Helper()
	result, err := e.Gate.Check(t.Context(), e.Session, e.Descriptor)
	if err != nil {
		t.Fault(err)
	}
	if !result.Passed {
		t.Fault(result.Err())
	}
}

// RequireElement waits for at least one element to match and returns the first.
func (e *CatalogEnv) RequireElement(t *scenario.T, selector harness.Selector) harness.Element {
	t.Helper()
	els := h.RequireFound(t.Context(), t, func(ctx context.Context) ([]harness.Element, bool, error) {
		els, err := e.Session.Query(ctx, selector)
		return els, len(els) > 0, err
	}, fmt.Sprintf("element %s", selector), e.Settings.WaitTimeout, e.Settings.PollInterval, t.Fault)
	return els[0]
}

// RequireNone checks that nothing currently matches. The page has already passed the readiness
// gate, so the query is made once rather than polled.
func (e *CatalogEnv) RequireNone(t *scenario.T, selector harness.Selector) {
	t.Helper()
	els, err := e.Session.Query(t.Context(), selector)
	if err != nil {
		t.Fault(err)
	}
	if len(els) != 0 {
		t.Fault(framework.AssertionMismatch{
			What:     fmt.Sprintf("number of elements matching %s", selector),
			Expected: 0,
			Actual:   len(els),
		})
	}
}

// RequireAbsent checks that nothing matches at any point during the absence timeout. It takes at
// least that long to pass.
func (e *CatalogEnv) RequireAbsent(t *scenario.T, selector harness.Selector) {
	t.Helper()
	result, err := h.ExpectAbsent(t.Context(), func(ctx context.Context) (int, bool, error) {
		els, err := e.Session.Query(ctx, selector)
		return len(els), len(els) > 0, err
	}, e.Settings.AbsenceTimeout, e.Settings.PollInterval)
	if err != nil {
		t.Fault(err)
	}
	if !result.IsAbsent() {
		t.Fault(framework.AssertionMismatch{
			What:     fmt.Sprintf("element %s", selector),
			Expected: fmt.Sprintf("absent for %s", e.Settings.AbsenceTimeout),
			Actual:   fmt.Sprintf("%d present after %s", result.Found(), result.Elapsed().Round(time.Millisecond)),
		})
	}
}

// RequireHeading waits for an h3 whose text, ignoring surrounding whitespace, is exactly title.
func (e *CatalogEnv) RequireHeading(t *scenario.T, title string) {
	t.Helper()
	want := strings.TrimSpace(title)
	h.RequireFound(t.Context(), t, func(ctx context.Context) (harness.Element, bool, error) {
		els, err := e.Session.Query(ctx, headings)
		if err != nil {
			return nil, false, err
		}
		for _, el := range els {
			text, err := e.Session.Text(ctx, el)
			if err != nil {
				return nil, false, err
			}
			if strings.TrimSpace(text) == want {
				return el, true, nil
			}
		}
		return nil, false, nil
	}, fmt.Sprintf("heading %q", want), e.Settings.WaitTimeout, e.Settings.PollInterval, t.Fault)
}

// Text returns the text of an element.
func (e *CatalogEnv) Text(t *scenario.T, el harness.Element) string {
	t.Helper()
	text, err := e.Session.Text(t.Context(), el)
	if err != nil {
		t.Fault(err)
	}
	return text
}

// Title returns the title of the current page.
func (e *CatalogEnv) Title(t *scenario.T) string {
	t.Helper()
	title, err := e.Session.Title(t.Context())
	if err != nil {
		t.Fault(err)
	}
	return title
}

// Fill types a value into the first element matching selector.
func (e *CatalogEnv) Fill(t *scenario.T, selector harness.Selector, value string) {
	t.Helper()
	el := e.RequireElement(t, selector)
	if err := e.Session.Fill(t.Context(), el, value); err != nil {
		t.Fault(err)
	}
}

// Click clicks the first element matching selector and then runs the readiness gate on whatever
// page results.
func (e *CatalogEnv) Click(t *scenario.T, selector harness.Selector) {
	t.Helper()
	el := e.RequireElement(t, selector)
	t.Debug("clicking %s", el.Describe())
	if err := e.Session.Click(t.Context(), el); err != nil {
		t.Fault(err)
	}
	e.CheckReady(t)
}

// parseCount reads a number such as "1,234,567" out of displayed text. If the text contains
// several numbers, as in "Showing 1 - 20 of 1,234", the last one is the count.
func parseCount(text string) (float64, bool) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return (r < '0' || r > '9') && r != ',' && r != '.'
	})
	for i := len(fields) - 1; i >= 0; i-- {
		digits := strings.Trim(strings.ReplaceAll(fields[i], ",", ""), ".")
		if digits == "" {
			continue
		}
		if n, err := strconv.ParseFloat(digits, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
