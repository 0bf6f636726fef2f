package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
)

// isolate points the user config lookup at an empty directory and clears
// AUTOPRICE_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, k := range []string{
		"AUTOPRICE_LOG_LEVEL", "AUTOPRICE_STORAGE_BACKEND", "AUTOPRICE_STORAGE_PATH",
		"AUTOPRICE_CATALOG_DIR", "AUTOPRICE_CATALOG_WATCH", "AUTOPRICE_MAX_RESULTS",
		"AUTOPRICE_HISTORY_LIMIT", "AUTOPRICE_CLEANUP_INTERVAL",
	} {
		t.Setenv(k, "")
	}
	return xdg
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 100, cfg.Cache.Fast.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Fast.TTLDuration())
	assert.Equal(t, 500, cfg.Cache.Session.Capacity)
	assert.Equal(t, 30*time.Minute, cfg.Cache.Session.TTLDuration())
	assert.Equal(t, 1000, cfg.Cache.Durable.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.Cache.Durable.TTLDuration())
	assert.Equal(t, time.Minute, cfg.Cache.CleanupEvery())
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.Equal(t, 10*time.Minute, cfg.Search.MemoTTLDuration())
	assert.Equal(t, 10, cfg.History.Limit)
	assert.Equal(t, 500*time.Millisecond, cfg.Catalog.DebounceWindow())
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Storage.SessionBackend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_LayerPrecedence(t *testing.T) {
	// Given: a user config and a project config that overlap
	xdg := isolate(t)
	writeYAML(t, filepath.Join(xdg, "autoprice", "config.yaml"), `
cache:
  fast:
    capacity: 50
    ttl: 1m
search:
  max_results: 15
history:
  limit: 7
`)
	dir := t.TempDir()
	writeYAML(t, filepath.Join(dir, ProjectConfigName), `
cache:
  fast:
    capacity: 60
search:
  max_results: 12
catalog:
  dir: data/cars
`)
	// And: an env override on top
	t.Setenv("AUTOPRICE_HISTORY_LIMIT", "5")

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: later layers win field by field
	assert.Equal(t, 60, cfg.Cache.Fast.Capacity, "project overrides user")
	assert.Equal(t, "1m", cfg.Cache.Fast.TTL, "user value survives when project omits it")
	assert.Equal(t, 12, cfg.Search.MaxResults)
	assert.Equal(t, 5, cfg.History.Limit, "env overrides files")
	assert.Equal(t, filepath.Join(dir, "data", "cars"), cfg.Catalog.Dir, "relative dir resolved against project")
	assert.Equal(t, 500, cfg.Cache.Session.Capacity, "untouched defaults remain")
}

func TestLoad_CatalogWatchCanBeDisabled(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeYAML(t, filepath.Join(dir, ProjectConfigName), "catalog:\n  dir: cars\n  watch: false\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.Catalog.Watch)

	t.Setenv("AUTOPRICE_CATALOG_WATCH", "true")
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Catalog.Watch)
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "catalog"), cfg.Catalog.Dir)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeYAML(t, filepath.Join(dir, ProjectConfigName), "cache: [not, a, map")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetCode(err))
}

func TestLoad_InvalidValueFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("AUTOPRICE_STORAGE_BACKEND", "postgres")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero capacity", func(c *Config) { c.Cache.Session.Capacity = 0 }, "cache.session.capacity"},
		{"bad ttl", func(c *Config) { c.Cache.Durable.TTL = "forever" }, "cache.durable.ttl"},
		{"negative ttl", func(c *Config) { c.Cache.Fast.TTL = "-1s" }, "must be positive"},
		{"bad cleanup", func(c *Config) { c.Cache.CleanupInterval = "" }, "cache.cleanup_interval"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"unknown session backend", func(c *Config) { c.Storage.SessionBackend = "cookie" }, "storage.session_backend"},
		{"file without path", func(c *Config) { c.Storage.Backend = "file"; c.Storage.Path = "" }, "storage.path"},
		{"max results", func(c *Config) { c.Search.MaxResults = 0 }, "search.max_results"},
		{"memo ttl", func(c *Config) { c.Search.MemoTTL = "soon" }, "search.memo_ttl"},
		{"prefix cache", func(c *Config) { c.Search.PrefixCacheSize = -1 }, "search.prefix_cache_size"},
		{"history limit", func(c *Config) { c.History.Limit = 0 }, "history.limit"},
		{"debounce", func(c *Config) { c.Catalog.Debounce = "x" }, "catalog.debounce"},
		{"log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "server.log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.MaxResults = 9
	cfg.Catalog.Watch = false

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Search.MaxResults)
	assert.False(t, loaded.Catalog.Watch)
}

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectConfigName)

	backup, err := BackupFile(path, time.Now())
	require.NoError(t, err)
	assert.Empty(t, backup, "nothing to back up")

	writeYAML(t, path, "version: 1\n")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var made []string
	for i := 0; i < MaxBackups+2; i++ {
		b, err := BackupFile(path, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		made = append(made, b)
	}

	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, made[len(made)-1], backups[0], "newest first")

	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}
