// Package config loads and validates run configuration for the scheduler.
//
// Values come from three layers, lowest precedence first: built-in
// defaults, an optional YAML file, and command-line flags applied by the
// cli package.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the classic oss command line.
const (
	DefaultTotalProcs       = 20
	DefaultConcurrencyLimit = 5
	DefaultChildTimeLimit   = 5
	DefaultLaunchIntervalMs = 100
	DefaultLogFile          = "oss.log"
	DefaultTableCapacity    = 20
	DefaultTimeLimit        = "60s"
)

// Config represents one scheduling run.
type Config struct {
	TotalProcs       int    `yaml:"totalProcs" json:"totalProcs"`
	ConcurrencyLimit int    `yaml:"concurrencyLimit" json:"concurrencyLimit"`
	ChildTimeLimit   int    `yaml:"childTimeLimit" json:"childTimeLimit"`
	LaunchIntervalMs int    `yaml:"launchIntervalMs" json:"launchIntervalMs"`
	LogFile          string `yaml:"logFile" json:"logFile"`
	TableCapacity    int    `yaml:"tableCapacity" json:"tableCapacity"`
	TimeLimit        string `yaml:"timeLimit" json:"timeLimit"`
	Seed             uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
	InProcess        bool   `yaml:"inProcess,omitempty" json:"inProcess,omitempty"`
	SummaryOut       string `yaml:"summaryOut,omitempty" json:"summaryOut,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TotalProcs:       DefaultTotalProcs,
		ConcurrencyLimit: DefaultConcurrencyLimit,
		ChildTimeLimit:   DefaultChildTimeLimit,
		LaunchIntervalMs: DefaultLaunchIntervalMs,
		LogFile:          DefaultLogFile,
		TableCapacity:    DefaultTableCapacity,
		TimeLimit:        DefaultTimeLimit,
	}
}

// LaunchInterval returns the minimum simulated time between launches.
func (c *Config) LaunchInterval() time.Duration {
	return time.Duration(c.LaunchIntervalMs) * time.Millisecond
}

// RealTimeLimit parses the wall-clock watchdog duration.
func (c *Config) RealTimeLimit() (time.Duration, error) {
	d, err := time.ParseDuration(c.TimeLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid time limit %q: %w", c.TimeLimit, err)
	}
	return d, nil
}

// LoadConfig reads a YAML configuration file and layers it over the
// defaults. The document is checked against the configuration schema before
// it is decoded.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document over the defaults.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return config, nil
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return config, nil
}

// normalize turns a YAML-decoded value into the shape encoding/json
// produces, which is what the schema validator expects.
func normalize(raw interface{}) (interface{}, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
