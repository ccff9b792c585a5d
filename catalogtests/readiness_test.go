package catalogtests

import (
	"context"
	"testing"
	"time"

	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/harness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadinessGatePasses(t *testing.T) {
	catalog := &fakeCatalog{}
	server := catalog.start(t)
	registry := loadTestRegistry(t, server.URL+"/?botflag=1", testSettings, testEnvironment("production", server.URL, false))
	session := newTestSession(t)
	navigate(t, session, server.URL+"/?botflag=1")
	navigate(t, session, server.URL+"/Record/12345")

	result, err := NewReadinessGate(registry.Settings()).Check(context.Background(), session, lookup(t, registry, "production"))
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, "", result.Detail())
	assert.NoError(t, result.Err())
}

func TestReadinessGateLandmarkTimeoutIsAFailure(t *testing.T) {
	catalog := &fakeCatalog{omitLandmark: true, placeholderData: true}
	server := catalog.start(t)
	registry := loadTestRegistry(t, server.URL, testSettings, testEnvironment("production", server.URL, false))
	session := newTestSession(t)
	navigate(t, session, server.URL+"/?botflag=1")

	start := time.Now()
	result, err := NewReadinessGate(registry.Settings()).Check(context.Background(), session, lookup(t, registry, "production"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	assert.False(t, result.Passed)
	assert.Equal(t, SubcheckLandmark, result.Subcheck)
	assert.Equal(t, "readiness landmark: landmark id:loginOptions: expected present within 300ms, actual absent",
		result.Detail())
	assert.True(t, framework.IsFailure(result.Err()))
}

func TestReadinessGateCookieSubcheckPassesOnlyForExpectedValue(t *testing.T) {
	for _, params := range []struct {
		desc          string
		bootstrapPath string
		passes        bool
		detail        string
	}{
		{"expected value", "/?botflag=1", true, ""},
		{"different value", "/?botflag=2", false, `readiness cookie: cookie "botflag": expected "1", actual "2"`},
		{"no cookie", "/", false, `readiness cookie: cookie "botflag": expected "1", actual absent`},
	} {
		t.Run(params.desc, func(t *testing.T) {
			catalog := &fakeCatalog{}
			server := catalog.start(t)
			registry := loadTestRegistry(t, server.URL, testSettings, testEnvironment("production", server.URL, false))
			session := newTestSession(t)
			navigate(t, session, server.URL+params.bootstrapPath)
			navigate(t, session, server.URL+"/Record/12345")

			result, err := NewReadinessGate(registry.Settings()).Check(context.Background(), session, lookup(t, registry, "production"))
			require.NoError(t, err)
			assert.Equal(t, params.passes, result.Passed)
			if !params.passes {
				assert.Equal(t, SubcheckCookie, result.Subcheck)
				assert.Equal(t, params.detail, result.Detail())
			}
		})
	}
}

func TestReadinessGateSkipsCookieSubcheckWithoutExpectation(t *testing.T) {
	catalog := &fakeCatalog{}
	server := catalog.start(t)
	registry := loadTestRegistry(t, server.URL, testSettings, `
  - name: local
    base_url: `+server.URL+`
`)
	session := newTestSession(t)
	navigate(t, session, server.URL+"/Record/12345")

	result, err := NewReadinessGate(registry.Settings()).Check(context.Background(), session, lookup(t, registry, "local"))
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestReadinessGateReportsForbiddenTextExcerpt(t *testing.T) {
	catalog := &fakeCatalog{placeholderData: true}
	server := catalog.start(t)
	registry := loadTestRegistry(t, server.URL, testSettings, testEnvironment("production", server.URL, false))
	session := newTestSession(t)
	navigate(t, session, server.URL+"/?botflag=1")

	result, err := NewReadinessGate(registry.Settings()).Check(context.Background(), session, lookup(t, registry, "production"))
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, SubcheckForbiddenText, result.Subcheck)
	assert.Contains(t, result.Detail(), `expected no occurrence of "fake"`)
	assert.Contains(t, result.Detail(), "Lorem ipsum fake record data")
}

func TestReadinessGateIgnoresForbiddenTextOutsideRenderedText(t *testing.T) {
	catalog := &fakeCatalog{extraContent: `<ul><li>Proof</li><li>ake</li></ul>` +
		`<script>var fakeLoader = 1;</script><style>.fake{}</style><noscript>fake</noscript>` +
		`<template><p>fake</p></template>`}
	server := catalog.start(t)
	registry := loadTestRegistry(t, server.URL, testSettings, testEnvironment("production", server.URL, false))
	session := newTestSession(t)
	navigate(t, session, server.URL+"/?botflag=1")

	result, err := NewReadinessGate(registry.Settings()).Check(context.Background(), session, lookup(t, registry, "production"))
	require.NoError(t, err)
	assert.True(t, result.Passed, result.Detail())
}

func TestReadinessGateWithoutForbiddenText(t *testing.T) {
	catalog := &fakeCatalog{placeholderData: true}
	server := catalog.start(t)
	registry := loadTestRegistry(t, server.URL, testSettings, testEnvironment("production", server.URL, false))
	session := newTestSession(t)
	navigate(t, session, server.URL+"/?botflag=1")

	gate := NewReadinessGate(registry.Settings())
	gate.ForbiddenText = ""
	result, err := gate.Check(context.Background(), session, lookup(t, registry, "production"))
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestReadinessGateReturnsSelectorFault(t *testing.T) {
	catalog := &fakeCatalog{}
	server := catalog.start(t)
	registry := loadTestRegistry(t, server.URL, testSettings, testEnvironment("production", server.URL, false))
	session := newTestSession(t)
	navigate(t, session, server.URL+"/?botflag=1")

	gate := NewReadinessGate(registry.Settings())
	gate.Landmark = harness.XPath(`//*[@id="loginOptions"]`)
	start := time.Now()
	_, err := gate.Check(context.Background(), session, lookup(t, registry, "production"))
	var fault framework.SelectorFault
	require.ErrorAs(t, err, &fault)
	assert.False(t, framework.IsFailure(err))
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestReadinessGateIsReadOnly(t *testing.T) {
	catalog := &fakeCatalog{}
	server := catalog.start(t)
	registry := loadTestRegistry(t, server.URL, testSettings, testEnvironment("production", server.URL, false))
	session := newTestSession(t)
	navigate(t, session, server.URL+"/?botflag=1")
	navigate(t, session, server.URL+"/Record/742590")
	requestsBefore := catalog.requestCount("")

	gate := NewReadinessGate(registry.Settings())
	descriptor := lookup(t, registry, "production")
	first, err := gate.Check(context.Background(), session, descriptor)
	require.NoError(t, err)
	second, err := gate.Check(context.Background(), session, descriptor)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, requestsBefore, catalog.requestCount(""))
	assert.Equal(t, server.URL+"/Record/742590", session.CurrentURL())
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a fake b", excerpt("a fake b", 2, 4))

	long := "0123456789012345678901234567890123456789fake0123456789012345678901234567890123456789"
	assert.Equal(t, "...012345678901234567890123456789fake012345678901234567890123456789...",
		excerpt(long, 40, 4))
}
