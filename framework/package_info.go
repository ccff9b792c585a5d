// Package framework contains the low-level implementation of test harness infrastructure
// for verifying a deployed catalog web application through a browser. The base package
// contains shared types such as Logger, the fault taxonomy, and feature-flag resolution;
// other components are in the subpackages harness, helpers, opt, and scenario.
//
// The general model is:
//
// 1. The harness drives one browser session per environment through an automation engine
// (see harness.Engine). Every engine operation is serialized by harness.Session.
//
// 2. Checks are declared as a static tree of suites and cases (see scenario.Suite and
// scenario.Case) which is traversed in declaration order against that session.
//
// 3. There is a general notion of a test scope similar to Go's testing.T, allowing pieces of
// test logic to be associated with a test identifier and to accumulate passed, failed,
// skipped, or errored outcomes.
//
// The domain-specific code that knows what is being tested is responsible for providing the
// scenario tree, the selectors and expected text for each page, and the readiness checks.
package framework
