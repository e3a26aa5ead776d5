// Package config loads the core's ambient configuration: an optional
// on-disk agentcore.yaml of shell defaults and idle-timeout policy, plus
// environment-variable overrides for the bind address and log level.
package config

import (
	"fmt"
	"os"

	"github.com/ianremillard/agentcore/internal/wire"
	"gopkg.in/yaml.v3"
)

const (
	// envAddr overrides the default bind address.
	envAddr = "AGENTCORE_ADDR"
	// envLogLevel overrides the default log level.
	envLogLevel = "AGENTCORE_LOG_LEVEL"
	// envConfigFile points at an agentcore.yaml to load; if unset, running
	// without a config file is not an error.
	envConfigFile = "AGENTCORE_CONFIG"

	defaultAddr     = "0.0.0.0:8080"
	defaultLogLevel = "info"
)

// ShellDefaults holds per-shell policy defaults applied when a creation
// request omits the corresponding field.
type ShellDefaults struct {
	IdleTimeoutSec int64  `yaml:"idle_timeout_sec"`
	Cols           uint16 `yaml:"cols"`
	Rows           uint16 `yaml:"rows"`
}

// fileConfig is the shape of an optional on-disk agentcore.yaml.
type fileConfig struct {
	Defaults map[wire.Shell]ShellDefaults `yaml:"defaults"`
}

// Config is the fully-resolved configuration: file-provided shell
// defaults layered under environment-controlled process settings.
type Config struct {
	Addr     string
	LogLevel string
	Defaults map[wire.Shell]ShellDefaults
}

// Load resolves configuration the way cmd/agentcored's entry point does:
// read an optional YAML file (path from AGENTCORE_CONFIG, if set), then
// apply environment overrides for bind address and log level.
func Load() (Config, error) {
	cfg := Config{
		Addr:     defaultAddr,
		LogLevel: defaultLogLevel,
		Defaults: map[wire.Shell]ShellDefaults{},
	}

	if path := os.Getenv(envConfigFile); path != "" {
		fc, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Defaults = fc.Defaults
	}

	if v := os.Getenv(envAddr); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// loadFile parses one agentcore.yaml, following the teacher's
// project.go pattern of reading the whole file and unmarshaling with
// yaml.v3 rather than a streaming decoder (these files are small and
// read once at startup).
func loadFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// ApplyDefaults fills in a SessionCreateRequest's zero-valued fields from
// the shell's configured defaults, before the registry validates and acts
// on it. Fields the caller already set are left untouched.
func (c Config) ApplyDefaults(req wire.SessionCreateRequest) wire.SessionCreateRequest {
	d, ok := c.Defaults[req.Shell]
	if !ok {
		return req
	}
	if req.IdleTimeoutSec <= 0 {
		req.IdleTimeoutSec = d.IdleTimeoutSec
	}
	if req.Cols == 0 {
		req.Cols = d.Cols
	}
	if req.Rows == 0 {
		req.Rows = d.Rows
	}
	return req
}
