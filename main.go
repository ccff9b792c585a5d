package main

import (
	"context"
	_ "embed" // this is required in order for go:embed to work
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/libcatalog/catalog-test-harness/catalogtests"
	"github.com/libcatalog/catalog-test-harness/environments"
	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/harness"
	"github.com/libcatalog/catalog-test-harness/framework/scenario"
	"github.com/libcatalog/catalog-test-harness/resultstore"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

var errTestsFailed = errors.New("some tests failed") //nolint:gochecknoglobals

func version() string {
	return strings.TrimSpace(versionString)
}

func main() {
	fmt.Printf("catalog-test-harness v%s\n", version())

	cmd := newRootCommand(func(params commandParams) error {
		results, err := run(params)
		if err != nil {
			return err
		}
		if !results.OK() {
			return errTestsFailed
		}
		return nil
	})
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(params commandParams) (*scenario.Results, error) {
	if params.skipFile != "" {
		if err := loadSuppressions(&params); err != nil {
			return nil, err
		}
	}

	processLogger := framework.NewProcessLogger(os.Stderr, params.debugAll)

	registry, err := environments.LoadFile(params.configPath)
	if err != nil {
		return nil, err
	}
	if len(params.environments) != 0 {
		if registry, err = registry.Select(params.environments); err != nil {
			return nil, err
		}
	}
	processLogger.Info("loaded environments", "file", params.configPath, "names", registry.Names())

	engines, closeEngines, err := startEngines(params, processLogger)
	if err != nil {
		return nil, err
	}
	defer closeEngines()

	testLogger, closeLoggers, err := createTestLogger(params)
	if err != nil {
		return nil, err
	}
	defer closeLoggers()

	scenario.PrintFilterDescription(os.Stdout, params.filters)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if params.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.budget)
		defer cancel()
	}

	results, err := catalogtests.RunCatalogTestSuite(ctx, registry, engines, catalogtests.SuiteOptions{
		Filter:     params.filters.AsFilter(),
		TestLogger: testLogger,
		Parallel:   params.parallel,
		Logger:     processLogger,
	})
	if err != nil {
		return nil, err
	}

	fmt.Println()
	if logErr := testLogger.EndLog(results); logErr != nil {
		return nil, fmt.Errorf("error writing log: %w", logErr)
	}

	if params.recordFailures != "" {
		if err := recordFailures(params.recordFailures, results); err != nil {
			return nil, err
		}
	}

	return &results, nil
}

func startEngines(params commandParams, logger *log.Logger) (harness.EngineFactory, func(), error) {
	if params.engine == engineStatic {
		return harness.StaticEngineFactory(harness.StaticConfig{UserAgent: params.userAgent}), func() {}, nil
	}
	browser, err := harness.LaunchRod(harness.RodConfig{
		RemoteURL: params.remoteURL,
		Headful:   params.headful,
		Stealth:   params.stealth,
		Logger:    framework.AsLogger(logger),
	})
	if err != nil {
		return nil, nil, err
	}
	closeBrowser := func() {
		if err := browser.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}
	return browser.NewEngine, closeBrowser, nil
}

func createTestLogger(params commandParams) (scenario.TestLogger, func(), error) {
	consoleLogger := &scenario.ConsoleTestLogger{
		Out:                  os.Stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	loggers := []scenario.TestLogger{consoleLogger}
	closeAll := func() {}

	if params.jUnitFile != "" {
		properties := map[string]string{
			"harness.version":   version(),
			"harness.engine":    params.engine,
			"environments.file": params.configPath,
		}
		loggers = append(loggers, scenario.NewJUnitTestLogger(params.jUnitFile, properties, params.filters))
	}
	if params.resultsDB != "" {
		store, err := resultstore.Open(params.resultsDB)
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("Recording results as run %s in %s\n", store.RunID(), params.resultsDB)
		loggers = append(loggers, store)
		closeAll = func() { _ = store.Close() }
	}

	if len(loggers) == 1 {
		return consoleLogger, closeAll, nil
	}
	return &scenario.MultiTestLogger{Loggers: loggers}, closeAll, nil
}

func loadSuppressions(params *commandParams) error {
	file, err := os.Open(params.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return params.filters.LoadSuppressions(file)
}

func recordFailures(path string, results scenario.Results) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create suppression file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return scenario.WriteFailures(f, results)
}
