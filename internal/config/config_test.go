package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ianremillard/agentcore/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	t.Setenv("AGENTCORE_CONFIG", "")
	t.Setenv("AGENTCORE_ADDR", "")
	t.Setenv("AGENTCORE_LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, defaultLogLevel, cfg.LogLevel)
	assert.Empty(t, cfg.Defaults)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("AGENTCORE_CONFIG", "")
	t.Setenv("AGENTCORE_ADDR", "127.0.0.1:9090")
	t.Setenv("AGENTCORE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadParsesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.yaml")
	contents := "defaults:\n  cmd:\n    idle_timeout_sec: 120\n    cols: 80\n    rows: 24\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	t.Setenv("AGENTCORE_CONFIG", path)
	t.Setenv("AGENTCORE_ADDR", "")
	t.Setenv("AGENTCORE_LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Contains(t, cfg.Defaults, wire.ShellCmd)
	assert.Equal(t, int64(120), cfg.Defaults[wire.ShellCmd].IdleTimeoutSec)
}

func TestLoadSurfacesMissingFile(t *testing.T) {
	t.Setenv("AGENTCORE_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestApplyDefaultsFillsZeroFields(t *testing.T) {
	cfg := Config{Defaults: map[wire.Shell]ShellDefaults{
		wire.ShellCmd: {IdleTimeoutSec: 90, Cols: 80, Rows: 24},
	}}

	req := cfg.ApplyDefaults(wire.SessionCreateRequest{Shell: wire.ShellCmd})
	assert.Equal(t, int64(90), req.IdleTimeoutSec)
	assert.Equal(t, uint16(80), req.Cols)
	assert.Equal(t, uint16(24), req.Rows)
}

func TestApplyDefaultsLeavesExplicitFieldsAlone(t *testing.T) {
	cfg := Config{Defaults: map[wire.Shell]ShellDefaults{
		wire.ShellCmd: {IdleTimeoutSec: 90, Cols: 80, Rows: 24},
	}}

	req := cfg.ApplyDefaults(wire.SessionCreateRequest{Shell: wire.ShellCmd, Cols: 120, Rows: 40, IdleTimeoutSec: 10})
	assert.Equal(t, int64(10), req.IdleTimeoutSec)
	assert.Equal(t, uint16(120), req.Cols)
	assert.Equal(t, uint16(40), req.Rows)
}
