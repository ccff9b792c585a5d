package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/libcatalog/catalog-test-harness/framework/scenario"
)

const (
	engineRod    = "rod"
	engineStatic = "static"
)

type commandParams struct {
	configPath     string
	environments   []string
	filters        scenario.RegexFilters
	engine         string
	remoteURL      string
	headful        bool
	stealth        bool
	userAgent      string
	parallel       int
	budget         time.Duration
	jUnitFile      string
	resultsDB      string
	debug          bool
	debugAll       bool
	recordFailures string
	skipFile       string
}

func (c *commandParams) validate() error {
	switch c.engine {
	case engineRod, engineStatic:
	default:
		return fmt.Errorf("--engine must be %q or %q", engineRod, engineStatic)
	}
	if c.engine == engineStatic && (c.remoteURL != "" || c.headful || c.stealth) {
		return errors.New("--remote-url, --headful, and --stealth only apply to --engine=rod")
	}
	if c.parallel < 0 {
		return errors.New("--parallel cannot be negative")
	}
	if c.budget < 0 {
		return errors.New("--budget cannot be negative")
	}
	return nil
}

func newRootCommand(run func(params commandParams) error) *cobra.Command {
	var params commandParams

	cmd := &cobra.Command{
		Use:   "catalog-test-harness",
		Short: "Run browser-driven verification suites against library catalog environments",
		Long: `Run browser-driven verification suites against every environment listed in an
environments file. The process exits with a non-zero status if any case fails or errors.

Example:
  catalog-test-harness --config environments.yml
  catalog-test-harness --config environments.yml --engine static --run 'production/Homepage'
  catalog-test-harness --config environments.yml --parallel 2 --budget 10m --junit results.xml`,
		Args:          cobra.NoArgs,
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := params.validate(); err != nil {
				return err
			}
			return run(params)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&params.configPath, "config", "", "environments file in YAML or JSON format (required)")
	fs.StringSliceVar(&params.environments, "environment", nil, "only run the named environment(s)")
	fs.Var(&params.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&params.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.StringVar(&params.engine, "engine", engineRod, "browser engine: rod (Chrome) or static (HTTP only, no scripts)")
	fs.StringVar(&params.remoteURL, "remote-url", "", "DevTools URL of a running Chrome instead of launching one")
	fs.BoolVar(&params.headful, "headful", false, "show the browser window")
	fs.BoolVar(&params.stealth, "stealth", false, "hide browser automation from bot detection")
	fs.StringVar(&params.userAgent, "user-agent", "", "User-Agent header for the static engine")
	fs.IntVar(&params.parallel, "parallel", 1, "maximum number of environments to run at once")
	fs.DurationVar(&params.budget, "budget", 0, "time limit for the whole run (0 means none)")
	fs.StringVar(&params.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.StringVar(&params.resultsDB, "results-db", "", "record results in the specified SQLite database")
	fs.BoolVar(&params.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&params.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&params.recordFailures, "record-failures", "", "write the IDs of failed tests to the specified file")
	fs.StringVar(&params.skipFile, "skip-file", "", "skip the tests listed in the specified file")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
