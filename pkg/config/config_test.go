package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{".md", ".markdown", ".txt"}, cfg.Corpus.Extensions)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Cache.RedisEnabled)
	assert.False(t, cfg.Analytics.Enabled)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	data := `
server:
  port: 9191
corpus:
  root: /srv/notes
  extensions: [".md"]
search:
  defaultLimit: 5
  maxResults: 50
  queryTimeout: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/srv/notes", cfg.Corpus.Root)
	assert.Equal(t, []string{".md"}, cfg.Corpus.Extensions)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.QueryTimeout)
	// untouched sections keep their defaults
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CORPUS_ROOT", "/tmp/notes")
	t.Setenv("CORPUS_EXTENSIONS", ".md, .txt")
	t.Setenv("CORPUS_REDIS_ADDR", "redis:6379")
	t.Setenv("CORPUS_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/notes", cfg.Corpus.Root)
	assert.Equal(t, []string{".md", ".txt"}, cfg.Corpus.Extensions)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Cache.RedisEnabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"no extensions", func(c *Config) { c.Corpus.Extensions = nil }},
		{"extension without dot", func(c *Config) { c.Corpus.Extensions = []string{"md"} }},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxResults = 1 }},
		{"cache without size", func(c *Config) { c.Cache.LocalSize = 0 }},
		{"zero snapshot interval", func(c *Config) { c.Analytics.SnapshotInterval = 0 }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, defaultConfig().Validate())
}

func TestLoad_RejectsZeroSnapshotInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analytics:\n  snapshotInterval: 0s\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analytics.snapshotInterval")
}
