// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/codec"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "someip2val.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Bus.URL != "nats://127.0.0.1:4222" {
		t.Errorf("expected default bus url, got %s", cfg.Bus.URL)
	}
	if cfg.Bus.SubjectPrefix != "vss" {
		t.Errorf("expected subject_prefix=vss, got %s", cfg.Bus.SubjectPrefix)
	}
	if cfg.BusCompression() != codec.CompressionNone {
		t.Errorf("expected no compression, got %s", cfg.BusCompression())
	}
	if cfg.DummyFeeder || cfg.SomeIP.UseTCP {
		t.Error("dummy feeder and TCP should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_DefaultsWithoutConfig(t *testing.T) {
	t.Setenv(EnvConfig, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Bus.URL != Default().Bus.URL {
		t.Errorf("expected default bus url, got %s", cfg.Bus.URL)
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
bus:
  url: nats://bus.rig:4222
dummy_feeder: true
`)
	t.Setenv(EnvConfig, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Bus.URL != "nats://bus.rig:4222" {
		t.Errorf("expected bus url from file, got %s", cfg.Bus.URL)
	}
	if !cfg.DummyFeeder {
		t.Error("expected dummy_feeder=true")
	}
	// Unset fields keep their defaults.
	if cfg.Bus.SubjectPrefix != "vss" {
		t.Errorf("expected default subject_prefix, got %s", cfg.Bus.SubjectPrefix)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

bus:
  url: nats://10.0.0.1:4222
  subject_prefix: car.vss
  compression: zstd
  buffer_max_bytes: 65536

someip:
  use_tcp: true

metrics:
  listen: 127.0.0.1:9464

log:
  level: debug
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Bus.SubjectPrefix != "car.vss" {
		t.Errorf("expected subject_prefix=car.vss, got %s", cfg.Bus.SubjectPrefix)
	}
	if cfg.BusCompression() != codec.CompressionZstd {
		t.Errorf("expected zstd, got %s", cfg.BusCompression())
	}
	if cfg.Bus.BufferMaxBytes != 65536 {
		t.Errorf("expected buffer_max_bytes=65536, got %d", cfg.Bus.BufferMaxBytes)
	}
	if !cfg.SomeIP.UseTCP {
		t.Error("expected use_tcp=true")
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("expected metrics listen address, got %s", cfg.Metrics.Listen)
	}
	if cfg.LogLevel(0) != slog.LevelDebug {
		t.Errorf("explicit log.level should win over verbosity, got %s", cfg.LogLevel(0))
	}
}

func TestLoadFile_RejectsUnknownKeys(t *testing.T) {
	configPath := writeConfig(t, `
bus:
  urll: nats://typo:4222
`)
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "absent.yaml") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty file should yield valid defaults: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

bus:
  url: nats://bench:4222
  compression: none

log:
  level: debug

staging:
  bus:
    url: nats://staging:4222

production:
  bus:
    url: nats://vehicle:4222
    compression: lz4
  log:
    level: warn
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Bus.URL != "nats://vehicle:4222" {
		t.Errorf("expected production url, got %s", cfg.Bus.URL)
	}
	if cfg.BusCompression() != codec.CompressionLZ4 {
		t.Errorf("expected lz4 from production override, got %s", cfg.Bus.Compression)
	}
	if cfg.LogLevel(3) != slog.LevelWarn {
		t.Errorf("expected warn from production override, got %s", cfg.LogLevel(3))
	}
}

func TestBusURLExpansion(t *testing.T) {
	t.Setenv("SOMEIP2VAL_TEST_BUS", "nats://expanded:4222")
	configPath := writeConfig(t, `
bus:
  url: ${SOMEIP2VAL_TEST_BUS:-nats://fallback:4222}
metrics:
  listen: ${SOMEIP2VAL_TEST_UNSET:-:9464}
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Bus.URL != "nats://expanded:4222" {
		t.Errorf("expected expanded url, got %s", cfg.Bus.URL)
	}
	if cfg.Metrics.Listen != ":9464" {
		t.Errorf("expected default listen address, got %s", cfg.Metrics.Listen)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/nats.creds", map[string]string{"HOME": "/home/user"}, "/home/user/nats.creds"},
		{"${SOMEIP2VAL_TEST_MISSING:-default}", map[string]string{}, "default"},
		{"${PRESENT:-default}", map[string]string{"PRESENT": "value"}, "value"},
		{"${A}:${B}", map[string]string{"A": "host", "B": "4222"}, "host:4222"},
		{"no variables here", map[string]string{}, "no variables here"},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"invalid environment", func(c *Config) { c.Environment = "invalid" }, true},
		{"empty bus url", func(c *Config) { c.Bus.URL = "" }, true},
		{"empty subject prefix", func(c *Config) { c.Bus.SubjectPrefix = "" }, true},
		{"unknown compression", func(c *Config) { c.Bus.Compression = "gzip" }, true},
		{"zero buffer", func(c *Config) { c.Bus.BufferMaxBytes = 0 }, true},
		{"negative buffer", func(c *Config) { c.Bus.BufferMaxBytes = -1 }, true},
		{"bad metrics address", func(c *Config) { c.Metrics.Listen = "9464" }, true},
		{"port-only metrics address", func(c *Config) { c.Metrics.Listen = ":9464" }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"upper-case log level", func(c *Config) { c.Log.Level = "WARN" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Bus.URL = ""
	cfg.Bus.Compression = "gzip"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"bus.url", "bus.compression"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestVerbosity(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 1},
		{"0", 0},
		{"2", 2},
		{" 3 ", 3},
		{"-1", 1},
		{"verbose", 1},
	}
	for _, tt := range tests {
		getenv := func(name string) string {
			if name == EnvDebug {
				return tt.value
			}
			return ""
		}
		if got := Verbosity(getenv); got != tt.want {
			t.Errorf("Verbosity(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestDebugLevel(t *testing.T) {
	tests := []struct {
		debug int
		want  slog.Level
	}{
		{0, slog.LevelError},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{5, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := DebugLevel(tt.debug); got != tt.want {
			t.Errorf("DebugLevel(%d) = %s, want %s", tt.debug, got, tt.want)
		}
		if got := Default().LogLevel(tt.debug); got != tt.want {
			t.Errorf("LogLevel(%d) with empty log.level = %s, want %s", tt.debug, got, tt.want)
		}
	}
}
