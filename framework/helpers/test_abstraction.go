// Package helpers contains general-purpose polling primitives and test abstractions used by
// the scenario framework and by the domain-specific catalog checks.
package helpers

// TestContext is a minimal interface for types like *testing.T and *scenario.T representing a
// test that can fail. Functions can use this to avoid specific dependencies on those packages.
type TestContext interface {
	Errorf(msgFormat string, msgArgs ...interface{})
	FailNow()
}
