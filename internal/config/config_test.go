package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
prefix: "!"
marriage_cost: 10
consent_timeout: 30s
store:
  driver: bolt
  path: /tmp/ledger.bolt
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "!", cfg.Prefix)
	assert.Equal(t, int64(10), cfg.MarriageCost)
	assert.Equal(t, 30*time.Second, cfg.ConsentTimeout)
	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, int64(5_000_000), cfg.DivorceCost, "untouched keys keep defaults")
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "starting_balance: 5\n")
	t.Setenv("PAIRLEDGER_STARTING_BALANCE", "7")
	t.Setenv("PAIRLEDGER_STORE_DRIVER", "memory")
	t.Setenv("PAIRLEDGER_LOG_LEVEL", "debug")
	t.Setenv("PAIRLEDGER_AFFECTION_COOLDOWN", "90m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.StartingBalance)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 90*time.Minute, cfg.AffectionCooldown)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "prefix: [unclosed\n"))
	assert.Error(t, err)

	t.Setenv("PAIRLEDGER_CACHE_CAPACITY", "lots")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative balance", func(c *Config) { c.StartingBalance = -1 }},
		{"zero timeout", func(c *Config) { c.ConsentTimeout = 0 }},
		{"zero affection step", func(c *Config) { c.AffectionStep = 0 }},
		{"blank prefix", func(c *Config) { c.Prefix = "" }},
		{"prefix with space", func(c *Config) { c.Prefix = "e x" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"unknown level", func(c *Config) { c.Log.Level = "trace" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative capacity", func(c *Config) { c.CacheCapacity = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}
}

func TestValidate_MemoryNeedsNoPath(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = "memory"
	cfg.Store.Path = ""
	assert.NoError(t, Validate(cfg))
}
