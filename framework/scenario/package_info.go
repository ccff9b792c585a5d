// Package scenario runs a declared tree of suites and cases against one environment. It works
// much like Go's testing package, but is run as regular application code rather than Go tests,
// and every case ends in exactly one of four outcomes: Passed, Failed, Skipped, or Errored.
//
// A Suite groups cases and may have a setup function whose result is shared with everything
// beneath it. If the setup fails, no case under it is run; each is recorded as Skipped with
// the setup failure as the cause.
package scenario
