package main

import (
	"testing"
	"time"

	"github.com/libcatalog/catalog-test-harness/framework/scenario"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args ...string) (commandParams, error) {
	t.Helper()
	var got commandParams
	cmd := newRootCommand(func(params commandParams) error {
		got = params
		return nil
	})
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return got, err
}

func TestCommandDefaults(t *testing.T) {
	params, err := parseArgs(t, "--config", "environments.yml")
	require.NoError(t, err)
	assert.Equal(t, "environments.yml", params.configPath)
	assert.Equal(t, engineRod, params.engine)
	assert.Equal(t, 1, params.parallel)
	assert.Equal(t, time.Duration(0), params.budget)
	assert.Nil(t, params.filters.AsFilter())
}

func TestCommandFlags(t *testing.T) {
	params, err := parseArgs(t,
		"--config", "environments.yml",
		"--engine", "static",
		"--environment", "production,beta",
		"--run", "production/Homepage",
		"--run", "beta",
		"--skip", "production/Account",
		"--parallel", "2",
		"--budget", "10m",
		"--junit", "results.xml",
		"--results-db", "results.db",
		"--debug",
	)
	require.NoError(t, err)
	assert.Equal(t, engineStatic, params.engine)
	assert.Equal(t, []string{"production", "beta"}, params.environments)
	assert.Len(t, params.filters.MustMatch, 2)
	assert.Len(t, params.filters.MustNotMatch, 1)
	assert.Equal(t, 2, params.parallel)
	assert.Equal(t, 10*time.Minute, params.budget)
	assert.Equal(t, "results.xml", params.jUnitFile)
	assert.Equal(t, "results.db", params.resultsDB)
	assert.True(t, params.debug)
	assert.False(t, params.debugAll)

	filter := params.filters.AsFilter()
	require.NotNil(t, filter)
	assert.True(t, filter(scenario.TestID{"production", "Homepage"}))
	assert.False(t, filter(scenario.TestID{"production", "Account", "sign in"}))
	assert.False(t, filter(scenario.TestID{"staging", "Homepage"}))
}

func TestCommandRejectsBadArguments(t *testing.T) {
	for _, params := range []struct {
		desc    string
		args    []string
		message string
	}{
		{"config is required", nil, "config"},
		{"unknown engine", []string{"--config", "x", "--engine", "firefox"}, "--engine"},
		{"rod options with static engine", []string{"--config", "x", "--engine", "static", "--headful"}, "--engine=rod"},
		{"negative parallelism", []string{"--config", "x", "--parallel", "-1"}, "--parallel"},
		{"negative budget", []string{"--config", "x", "--budget", "-1s"}, "--budget"},
		{"invalid pattern", []string{"--config", "x", "--run", "("}, "invalid regex"},
		{"positional arguments", []string{"--config", "x", "extra"}, "extra"},
	} {
		t.Run(params.desc, func(t *testing.T) {
			_, err := parseArgs(t, params.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), params.message)
		})
	}
}
