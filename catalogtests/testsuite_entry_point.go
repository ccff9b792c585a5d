package catalogtests

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/libcatalog/catalog-test-harness/environments"
	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/harness"
	"github.com/libcatalog/catalog-test-harness/framework/scenario"
)

// SuiteOptions controls RunCatalogTestSuite.
type SuiteOptions struct {
	// Filter selects cases by ID. If nil, every case runs.
	Filter scenario.Filter

	// TestLogger receives the status of every case. It must be safe for concurrent use when
	// Parallel is greater than 1.
	TestLogger scenario.TestLogger

	// Parallel is the maximum number of environments to run at once. Values below 2 mean that
	// environments run one after another on the bootstrap session.
	Parallel int

	// Logger receives run-level messages. It may be nil.
	Logger *log.Logger
}

// RunCatalogTestSuite bootstraps a browser session once and then runs the scenario tree of every
// environment in the registry. The results of all environments are merged in declared order.
//
// An error return means the run could not take place at all: the bootstrap failed or a browser
// session could not be created. Failures of individual cases are reported in the results.
// The run budget is the deadline of ctx.
func RunCatalogTestSuite(
	ctx context.Context,
	registry *environments.Registry,
	engines harness.EngineFactory,
	options SuiteOptions,
) (scenario.Results, error) {
	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	settings := registry.Settings()

	bootstrapSession, err := openSession(ctx, engines, "bootstrap", logger)
	if err != nil {
		return scenario.Results{}, err
	}
	defer closeSession(bootstrapSession, logger)

	bootstrapper := &harness.Bootstrapper{
		URL:           settings.BootstrapURL,
		SettleTimeout: settings.WaitTimeout,
		PollInterval:  settings.PollInterval,
		Logger:        framework.AsLogger(logger),
	}
	logger.Info("bootstrapping", "url", settings.BootstrapURL)
	if err := bootstrapper.Run(ctx, bootstrapSession); err != nil {
		return scenario.Results{}, err
	}

	var descriptors []environments.Descriptor
	for d := range registry.Iterate() {
		descriptors = append(descriptors, d)
	}
	results := make([]scenario.Results, len(descriptors))

	if options.Parallel < 2 {
		for i, d := range descriptors {
			results[i] = runEnvironment(ctx, d, settings, bootstrapSession, options, logger)
		}
		return scenario.MergeResults(results...), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(options.Parallel)
	for i, d := range descriptors {
		g.Go(func() error {
			session, err := openSession(gctx, engines, d.Name, logger)
			if err != nil {
				return err
			}
			defer closeSession(session, logger)
			if err := bootstrapper.Prime(gctx, session); err != nil {
				return err
			}
			results[i] = runEnvironment(ctx, d, settings, session, options, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return scenario.MergeResults(results...), err
	}
	return scenario.MergeResults(results...), nil
}

func runEnvironment(
	ctx context.Context,
	descriptor environments.Descriptor,
	settings environments.Settings,
	session *harness.Session,
	options SuiteOptions,
	logger *log.Logger,
) scenario.Results {
	env := NewCatalogEnv(descriptor, settings, session)
	logger.Info("running environment", "name", descriptor.Name, "url", descriptor.BaseURL,
		"interface", env.Flags.Generation)
	results := scenario.Execute(scenario.TestConfiguration{
		Filter:     options.Filter,
		TestLogger: options.TestLogger,
		Context:    ctx,
	}, CatalogTree(env))
	logger.Info("finished environment", "name", descriptor.Name,
		"passed", results.Count(scenario.Passed), "failed", results.Count(scenario.Failed),
		"errored", results.Count(scenario.Errored), "skipped", results.Count(scenario.Skipped))
	return results
}

func openSession(
	ctx context.Context,
	engines harness.EngineFactory,
	name string,
	logger *log.Logger,
) (*harness.Session, error) {
	engine, err := engines(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not start browser session for %s: %w", name, err)
	}
	logger.Debug("opened browser session", "name", name)
	return harness.NewSession(name, engine, framework.AsLogger(logger)), nil
}

func closeSession(session *harness.Session, logger *log.Logger) {
	if err := session.Close(); err != nil {
		logger.Warn("error closing browser session", "name", session.Name(), "err", err)
	}
}
