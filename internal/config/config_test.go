package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lsmvec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	opts, err := cfg.StoreOptions()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}

func TestLoadWithConfigFile(t *testing.T) {
	path := writeConfig(t, `
dir: /var/lib/vectors
store:
  memtable_flush_size: 50
  max_segments_before_compact: 2
  durability: async
  compression: lz4
  codec: json
  lock_timeout: 2s
log:
  level: debug
  format: json
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/vectors", cfg.Dir)
	assert.Equal(t, 50, cfg.Store.MemtableFlushSize)
	assert.Equal(t, 2, cfg.Store.MaxSegmentsBeforeCompact)
	assert.Equal(t, "async", cfg.Store.Durability)
	assert.Equal(t, "lz4", cfg.Store.Compression)
	assert.Equal(t, "json", cfg.Store.Codec)
	assert.Equal(t, 2*time.Second, cfg.Store.LockTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, DefaultConfig().Store.OverfetchFactor, cfg.Store.OverfetchFactor)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LSMVEC_DIR", "/tmp/from-env")
	t.Setenv("LSMVEC_STORE_MEMTABLE_FLUSH_SIZE", "7")
	path := writeConfig(t, "dir: /from/file\n")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", cfg.Dir)
	assert.Equal(t, 7, cfg.Store.MemtableFlushSize)
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty dir", func(c *Config) { c.Dir = "" }},
		{"flush size", func(c *Config) { c.Store.MemtableFlushSize = 0 }},
		{"max segments", func(c *Config) { c.Store.MaxSegmentsBeforeCompact = 0 }},
		{"rebuild ratio", func(c *Config) { c.Store.IndexRebuildRatio = 1.5 }},
		{"durability", func(c *Config) { c.Store.Durability = "sometimes" }},
		{"compression", func(c *Config) { c.Store.Compression = "gzip" }},
		{"codec", func(c *Config) { c.Store.Codec = "xml" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
