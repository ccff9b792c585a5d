// Package catalogtests contains the catalog-specific verification logic: the readiness gate that
// runs after every navigation, the scenario tree declared for each environment, and the entry
// point that runs every environment in a registry.
//
// Tests in this package use other packages as follows:
//
// environments: environment descriptors and run-wide settings
//
// scenario: the basic test scope framework
//
// harness: browser sessions, engines, and the one-time bootstrap
//
// helpers: bounded waits and absence checks
package catalogtests
