package catalogtests

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/libcatalog/catalog-test-harness/environments"
	"github.com/libcatalog/catalog-test-harness/framework/harness"

	"github.com/stretchr/testify/require"
)

const testSettings = `
readiness: {landmark_timeout: 300ms}
timeouts: {wait: 300ms, absence: 150ms, poll_interval: 10ms}
`

func testEnvironment(name, baseURL string, upcoming bool) string {
	return fmt.Sprintf(`
  - name: %s
    base_url: %s
    feature_flags: {future_version: %t}
    expected:
      cookie_name: botflag
      cookie_value: "1"
      record_ids:
        print: 12345
        unrequestable: 677843
        summary_holdings: 742590
        restricted: 12639
        bound_with: 1092692
        finding_aid: 10664764
      numeric_ranges: {search_results: {min: 1000, max: 9000000}}
      credentials: [{username: patron, password: secret}]
`, name, baseURL, upcoming)
}

func loadTestRegistry(t *testing.T, bootstrapURL string, settings string, envs ...string) *environments.Registry {
	t.Helper()
	data := settings + "\nbootstrap_url: " + bootstrapURL + "\nenvironments:" + strings.Join(envs, "")
	r, err := environments.Load([]byte(data), environments.LoadOptions{Source: t.Name()})
	require.NoError(t, err)
	return r
}

func lookup(t *testing.T, r *environments.Registry, name string) environments.Descriptor {
	t.Helper()
	d, ok := r.Lookup(name)
	require.True(t, ok)
	return d
}

func newTestSession(t *testing.T) *harness.Session {
	t.Helper()
	engine, err := harness.NewStaticEngine(harness.StaticConfig{})
	require.NoError(t, err)
	session := harness.NewSession(t.Name(), engine, nil)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func navigate(t *testing.T, session *harness.Session, url string) {
	t.Helper()
	require.NoError(t, session.Navigate(context.Background(), url))
}
