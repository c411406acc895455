package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	cli, showVersion := parseFlags(nil)
	require.NotNil(t, cli)
	assert.False(t, showVersion)
	assert.Equal(t, "", cli.port)
	assert.Equal(t, "", cli.configPath)
	assert.False(t, cli.dryRun)
	assert.False(t, cli.web)
	assert.False(t, cli.verbose)
}

func TestParseFlags_ExplicitOverridesEnv(t *testing.T) {
	t.Setenv("BBSYNCER_PORT", "/dev/ttyACM9")
	t.Setenv("BBSYNCER_DRY_RUN", "true")

	cli, _ := parseFlags([]string{"--port", "/dev/ttyACM0"})
	require.NotNil(t, cli)
	assert.Equal(t, "/dev/ttyACM0", cli.port, "explicit --port flag wins over BBSYNCER_PORT")
	assert.True(t, cli.dryRun, "env BBSYNCER_DRY_RUN applies when --dry-run wasn't passed")
}

func TestParseFlags_EnvOverridesDefault(t *testing.T) {
	t.Setenv("BBSYNCER_WEB", "1")
	t.Setenv("BBSYNCER_LOG_METRICS_INTERVAL", "30s")

	cli, _ := parseFlags(nil)
	require.NotNil(t, cli)
	assert.True(t, cli.web)
	assert.Equal(t, 30*time.Second, cli.logMetricsEvery)
}

func TestParseFlags_VersionFlag(t *testing.T) {
	_, showVersion := parseFlags([]string{"--version"})
	assert.True(t, showVersion)
}

func TestParseBool(t *testing.T) {
	cases := map[string]bool{
		"true": true, "1": true, "yes": true, "on": true,
		"false": false, "0": false, "no": false, "off": false,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseBool(input, !want), "input %q", input)
	}
	assert.True(t, parseBool("garbage", true), "unrecognized value keeps fallback")
}
