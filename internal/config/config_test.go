package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6540, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Persistence.CriticalDelay)
	assert.Equal(t, 10*time.Second, cfg.Persistence.MinSaveInterval)
	assert.NoError(t, cfg.Validate())

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
library:
  path: /srv/footage
persistence:
  structural_delay: 3s
  periodic_interval: 1m
logging:
  level: debug
  pretty: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/srv/footage", cfg.Library.Path)
	assert.Equal(t, 3*time.Second, cfg.Persistence.StructuralDelay)
	assert.Equal(t, time.Minute, cfg.Persistence.PeriodicInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Persistence.CriticalDelay, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Pretty)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"database", func(c *Config) { c.Database.Path = "" }},
		{"critical delay", func(c *Config) { c.Persistence.CriticalDelay = 0 }},
		{"save interval", func(c *Config) { c.Persistence.MinSaveInterval = -time.Second }},
		{"periodic", func(c *Config) { c.Persistence.PeriodicInterval = -time.Second }},
		{"snapshots", func(c *Config) { c.Persistence.MaxSnapshots = 0 }},
		{"epsilon", func(c *Config) { c.Tracker.Epsilon = -1 }},
		{"dedup", func(c *Config) { c.Bridge.DedupWindow = -time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("persistence:\n  max_snapshots: 0\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
