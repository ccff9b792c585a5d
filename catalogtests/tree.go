package catalogtests

import (
	"fmt"

	"github.com/libcatalog/catalog-test-harness/environments"
	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/scenario"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
)

// CatalogTree declares the scenarios for one environment. The tree is built from the descriptor:
// checks that need a record ID, a numeric range, or credentials are only declared when the
// environment provides them. The order of the children is the order in which they run.
func CatalogTree(env *CatalogEnv) scenario.Node {
	d := env.Descriptor
	var children []scenario.Node

	children = append(children, scenario.Case("Homepage", env.doHomepageTest))

	if id, ok := d.RecordID(RecordPrint); ok {
		children = append(children, scenario.Suite("Normal print record page", env.recordSetup(id),
			scenario.Case("has request affordance", func(t *scenario.T) {
				env.RequireElement(t, pick(t, env, requestAffordance))
			}),
		))
	}
	if id, ok := d.RecordID(RecordUnrequestable); ok {
		children = append(children, scenario.Case("Un-requestable material", func(t *scenario.T) {
			selector := pick(t, env, requestAffordance)
			env.NavigateToRecord(t, id)
			env.RequireNone(t, selector)
		}))
	}
	if id, ok := d.RecordID(RecordSummaryHoldings); ok {
		children = append(children, scenario.Case("Summary holdings", func(t *scenario.T) {
			env.NavigateToRecord(t, id)
			env.RequireHeading(t, summaryHoldingsH3)
		}))
	}
	if id, ok := d.RecordID(RecordRestricted); ok {
		children = append(children, scenario.Suite("Restricted journal", nil,
			scenario.Case("not logged in", func(t *scenario.T) {
				selector := pick(t, env, restrictedLoginPrompt)
				env.NavigateToRecord(t, id)
				env.RequireElement(t, selector)
			}),
		))
	}
	if id, ok := d.RecordID(RecordBoundWith); ok {
		children = append(children, scenario.Case("Bound-with", func(t *scenario.T) {
			env.NavigateToRecord(t, id)
			env.RequireHeading(t, boundWithH3)
		}))
	}
	if id, ok := d.RecordID(RecordFindingAid); ok {
		children = append(children, scenario.Case("Finding aid tab", func(t *scenario.T) {
			selector := pick(t, env, findingAidTab)
			env.NavigateToRecord(t, id)
			env.RequireElement(t, selector)
		}))
	}

	children = append(children, scenario.Case("Legacy-only links absent", func(t *scenario.T) {
		selector := pick(t, env, legacyOnlyLinks)
		env.NavigateTo(t, homePath)
		env.RequireAbsent(t, selector)
	}))

	if r, ok := d.NumericRange(RangeSearchResults); ok {
		children = append(children, scenario.Case("Search result count", func(t *scenario.T) {
			env.doSearchResultCountTest(t, r)
		}))
	}

	if len(d.Expected.Credentials) != 0 {
		children = append(children, accountSuite(env, d.Expected.Credentials[0]))
	}

	return scenario.Suite(d.Name, env.environmentSetup, children...)
}

// environmentSetup makes the resolved flags visible in the debug output of every case.
func (e *CatalogEnv) environmentSetup(t *scenario.T) (interface{}, error) {
	t.Debug("environment %s at %s: %s interface, flags %s",
		e.Descriptor.Name, e.Descriptor.BaseURL, e.Flags.Generation, e.Descriptor.FeatureFlags)
	return e.Flags, nil
}

// recordSetup navigates to a record page once for all the cases in a suite. The cases in the
// suite must not navigate away from it.
func (e *CatalogEnv) recordSetup(id environments.RecordID) scenario.SetupFunc {
	return func(t *scenario.T) (interface{}, error) {
		e.NavigateToRecord(t, id)
		return id, nil
	}
}

func (e *CatalogEnv) doHomepageTest(t *scenario.T) {
	expected := pick(t, e, homepageTitle)
	e.NavigateTo(t, homePath)
	m.In(t).Assert(e.Title(t), m.Equal(expected))
}

func (e *CatalogEnv) doSearchResultCountTest(t *scenario.T, r environments.Range) {
	selector := pick(t, e, resultCount)
	e.NavigateTo(t, searchAllPath)
	text := e.Text(t, e.RequireElement(t, selector))
	count, ok := parseCount(text)
	if !ok {
		t.Fault(framework.AssertionMismatch{What: "search result count", Expected: "a number", Actual: fmt.Sprintf("%q", text)})
	}
	if !r.Contains(count) {
		t.Fault(framework.AssertionMismatch{What: "search result count", Expected: fmt.Sprintf("within %s", r), Actual: count})
	}
	t.Debug("search result count %v is within %s", count, r)
}

// accountSuite signs in, uses the account, and signs out. The cases depend on each other through
// the signed-in token rather than only through their order, so a failed sign-in makes the later
// cases fail with a clear reason instead of confusing page mismatches.
func accountSuite(env *CatalogEnv, credential environments.Credential) scenario.Node {
	return scenario.Suite("Account", nil,
		scenario.Case("sign in", func(t *scenario.T) {
			marker := pick(t, env, signedInMarker)
			env.NavigateTo(t, loginPath)
			env.Fill(t, usernameField, credential.Username)
			env.Fill(t, passwordField, credential.Password)
			env.Click(t, loginButton)
			env.RequireElement(t, marker)
			t.Grant(TokenSignedIn)
		}),
		scenario.Case("account page", func(t *scenario.T) {
			t.Require(TokenSignedIn)
			heading := pick(t, env, profileHeading)
			env.NavigateTo(t, profilePath)
			env.RequireElement(t, heading)
		}),
		scenario.Case("sign out", func(t *scenario.T) {
			t.Require(TokenSignedIn)
			marker := pick(t, env, signedInMarker)
			env.NavigateTo(t, logoutPath)
			t.Revoke(TokenSignedIn)
			env.RequireNone(t, marker)
		}),
	)
}
