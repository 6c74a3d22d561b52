package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadOrFail(t *testing.T, raw string) *Config {
	t.Helper()
	cfg, err := Unmarshal([]byte(raw))
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := loadOrFail(t, "")
	assert.Equal(t, DefaultHostname, cfg.Hostname)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRetainedWindow, cfg.RetainedWindow)
	assert.Equal(t, DefaultQueryWorkers, cfg.QueryWorkers)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestYamlOverridesDefaults(t *testing.T) {
	const raw = `
hostname: example.org
port: 9090
log_level: debug
retained_window: 500
query_workers: 8
`
	cfg := loadOrFail(t, raw)
	assert.Equal(t, "example.org", cfg.Hostname)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 500, cfg.RetainedWindow)
	assert.Equal(t, 8, cfg.QueryWorkers)
}

func TestEnvOverridesYaml(t *testing.T) {
	t.Setenv("HOSTNAME", "fromenv")
	t.Setenv("PORT", "7777")
	cfg := loadOrFail(t, "hostname: example.org\nport: 9090\n")
	assert.Equal(t, "fromenv", cfg.Hostname)
	assert.Equal(t, 7777, cfg.Port)
}

func TestInvalidPortEnv(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	_, err := Unmarshal(nil)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := Unmarshal([]byte("retained_window: 0\n"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte("query_workers: -1\n"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte("log_level: verbose\n"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte("port: 70000\n"))
	assert.Error(t, err)
}

func TestLoadConfigFileMissingIsDefaults(t *testing.T) {
	cfg, err := LoadConfigFile("/nonexistent/path/pipelinedocd.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoadConfigFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "pipelinedocd-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("port: 4242\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := LoadConfigFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.Port)
}

func TestAddr(t *testing.T) {
	cfg := loadOrFail(t, "hostname: localhost\nport: 8080\n")
	assert.Equal(t, "localhost:8080", cfg.Addr())
}
