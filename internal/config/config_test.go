package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:37777", cfg.ListenAddr())
	assert.Equal(t, 0.1, cfg.Decay.Threshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, 37777, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.Equal(t, "mem.db", filepath.Base(cfg.Database.Path))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 40000

[database]
path = "/tmp/custom.db"

[log]
level = "debug"
pretty = true

[decay]
threshold = 0.25

[indexer]
patterns = ["NOTES.md"]
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 0.25, cfg.Decay.Threshold)
	assert.Equal(t, []string{"NOTES.md"}, cfg.Indexer.Patterns)
	assert.Equal(t, 200, cfg.Search.MaxLimit)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MEM_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("MEM_LOG_LEVEL", "warn")
	t.Setenv("MEM_SERVER_PORT", "41000")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 41000, cfg.Server.Port)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport = "), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[decay]\nthreshold = -1\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "decay.threshold")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }, "search.default_limit"},
		{"default above max", func(c *Config) { c.Search.DefaultLimit = 500 }, "exceeds"},
		{"context too large", func(c *Config) { c.Context.Limit = 51 }, "context.limit"},
		{"no patterns", func(c *Config) { c.Indexer.Patterns = nil }, "indexer.patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLimits(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.SearchLimit(0))
	assert.Equal(t, 10, cfg.SearchLimit(-3))
	assert.Equal(t, 25, cfg.SearchLimit(25))
	assert.Equal(t, 200, cfg.SearchLimit(1000))

	assert.Equal(t, 10, cfg.ContextLimit(0))
	assert.Equal(t, 50, cfg.ContextLimit(99))
	assert.Equal(t, 7, cfg.ContextLimit(7))
}
