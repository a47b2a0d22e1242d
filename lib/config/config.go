// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/codec"
)

// EnvConfig names the environment variable [Load] reads the config
// file path from.
const EnvConfig = "SOMEIP2VAL_CONFIG"

// EnvDebug names the environment variable holding the numeric
// verbosity shared with the SOME/IP tooling.
const EnvDebug = "SOMEIP_CLI_DEBUG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for bench setups and local testing.
	Development Environment = "development"
	// Staging is for HIL rigs.
	Staging Environment = "staging"
	// Production is for in-vehicle deployments.
	Production Environment = "production"
)

// Config is the bridge configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Bus configures the NATS connection and frame encoding.
	Bus BusConfig `yaml:"bus"`

	// SomeIP configures the protocol client. Application identity and
	// transport layout come from the vsomeip environment variables.
	SomeIP SomeIPConfig `yaml:"someip"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// DummyFeeder starts the synthetic position ramp alongside the
	// listener.
	DummyFeeder bool `yaml:"dummy_feeder"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Bus     *BusConfig     `yaml:"bus,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// BusConfig configures the NATS publisher.
type BusConfig struct {
	// URL of the NATS server. Supports ${VAR:-default} expansion.
	// Default: nats://127.0.0.1:4222
	URL string `yaml:"url"`

	// SubjectPrefix roots the published subjects.
	// Default: vss
	SubjectPrefix string `yaml:"subject_prefix"`

	// Compression is one of none, lz4, zstd.
	// Default: none
	Compression string `yaml:"compression"`

	// BufferMaxBytes bounds frames waiting for the bus.
	// Default: 4 MiB
	BufferMaxBytes int `yaml:"buffer_max_bytes"`
}

// SomeIPConfig configures the protocol client.
type SomeIPConfig struct {
	// UseTCP listens on the reliable port instead of UDP.
	UseTCP bool `yaml:"use_tcp"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the host:port for /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty derives the
	// level from SOMEIP_CLI_DEBUG.
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment: Development,
		Bus: BusConfig{
			URL:            "nats://127.0.0.1:4222",
			SubjectPrefix:  "vss",
			Compression:    "none",
			BufferMaxBytes: 4 << 20,
		},
	}
}

// Load loads the file named by SOMEIP2VAL_CONFIG, or returns the
// defaults when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfig)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Unknown
// keys are rejected.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Bus != nil {
		if overrides.Bus.URL != "" {
			c.Bus.URL = overrides.Bus.URL
		}
		if overrides.Bus.SubjectPrefix != "" {
			c.Bus.SubjectPrefix = overrides.Bus.SubjectPrefix
		}
		if overrides.Bus.Compression != "" {
			c.Bus.Compression = overrides.Bus.Compression
		}
		if overrides.Bus.BufferMaxBytes != 0 {
			c.Bus.BufferMaxBytes = overrides.Bus.BufferMaxBytes
		}
	}

	if overrides.Metrics != nil && overrides.Metrics.Listen != "" {
		c.Metrics.Listen = overrides.Metrics.Listen
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// bus URL and metrics address.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Bus.URL = expandVars(c.Bus.URL, vars)
	c.Metrics.Listen = expandVars(c.Metrics.Listen, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Bus.URL == "" {
		errs = append(errs, fmt.Errorf("bus.url is required"))
	}
	if c.Bus.SubjectPrefix == "" {
		errs = append(errs, fmt.Errorf("bus.subject_prefix is required"))
	}
	if _, err := codec.ParseCompression(c.Bus.Compression); err != nil {
		errs = append(errs, fmt.Errorf("bus.compression: %w", err))
	}
	if c.Bus.BufferMaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("bus.buffer_max_bytes must be positive, got %d", c.Bus.BufferMaxBytes))
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}

	if c.Log.Level != "" {
		if _, err := ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// BusCompression returns the parsed compression algorithm. Call after
// Validate; an invalid name yields CompressionNone.
func (c *Config) BusCompression() codec.Compression {
	compression, _ := codec.ParseCompression(c.Bus.Compression)
	return compression
}

// LogLevel returns the configured level, or the level implied by the
// numeric verbosity when Log.Level is empty.
func (c *Config) LogLevel(debug int) slog.Level {
	if c.Log.Level != "" {
		if level, err := ParseLevel(c.Log.Level); err == nil {
			return level
		}
	}
	return DebugLevel(debug)
}

// ParseLevel parses a level name: debug, info, warn, or error.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// Verbosity reads SOMEIP_CLI_DEBUG through getenv. Unset or
// unparseable values mean 1.
func Verbosity(getenv func(string) string) int {
	value := strings.TrimSpace(getenv(EnvDebug))
	if value == "" {
		return 1
	}
	debug, err := strconv.Atoi(value)
	if err != nil || debug < 0 {
		return 1
	}
	return debug
}

// DebugLevel maps numeric verbosity onto a log level: 0 errors only,
// 1 info, 2 and above debug. Levels 3 and above additionally enable
// payload traces, which callers gate on the number itself.
func DebugLevel(debug int) slog.Level {
	switch {
	case debug <= 0:
		return slog.LevelError
	case debug == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
