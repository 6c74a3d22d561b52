// Package config loads the pipelinedocd server's YAML configuration,
// adapted from the teacher's config package: Unmarshal/LoadConfigFile/
// validate, now holding the document server's environment-derived
// settings (HOSTNAME, PORT) plus its operational knobs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultHostname = "localhost"
const DefaultPort = 8080

// DefaultRetainedWindow is the default for Config.RetainedWindow. The
// value is only parsed and validated; pkg/session does not read it and
// keeps every committed operation of a document session.
const DefaultRetainedWindow = 10000

// DefaultQueryWorkers sizes the pkg/query.Dispatcher pool backing every
// document session's query/read_file jobs.
const DefaultQueryWorkers = 4

// Config for pipelinedocd.
type Config struct {
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"`

	LogLevel string `yaml:"log_level"`

	RetainedWindow int `yaml:"retained_window"`
	QueryWorkers   int `yaml:"query_workers"`

	DocRoot string `yaml:"doc_root"`
}

// Unmarshal parses config, filling in defaults for anything left unset,
// then validates the result.
func Unmarshal(raw []byte) (*Config, error) {
	cfg := &Config{
		Hostname:       DefaultHostname,
		Port:           DefaultPort,
		LogLevel:       "info",
		RetainedWindow: DefaultRetainedWindow,
		QueryWorkers:   DefaultQueryWorkers,
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v. make sure to use 'single quotes' around strings with special characters", err.Error())
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the §6 environment variables (HOSTNAME, PORT) on
// top of whatever the YAML set, matching the spec's precedence: the
// environment is the canonical source for these two, the config file
// a convenience for the rest.
func (c *Config) applyEnv() error {
	if h := os.Getenv("HOSTNAME"); h != "" {
		c.Hostname = h
	}
	if p := os.Getenv("PORT"); p != "" {
		n, err := parsePort(p)
		if err != nil {
			return fmt.Errorf("invalid PORT environment variable %q: %w", p, err)
		}
		c.Port = n
	}
	return nil
}

func parsePort(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}

// LoadConfigFile loads and parses a YAML config file; a missing file
// is not an error, it just yields the defaults.
func LoadConfigFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return Unmarshal(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err.Error())
	}
	cfg, err := Unmarshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err.Error())
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RetainedWindow <= 0 {
		return fmt.Errorf("retained_window must be positive, got %d", c.RetainedWindow)
	}
	if c.QueryWorkers <= 0 {
		return fmt.Errorf("query_workers must be positive, got %d", c.QueryWorkers)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Addr is the listen address kingpin/the server binary binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}
