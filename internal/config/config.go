package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
	"github.com/Aman-CERP/autoprice/internal/storage"
)

// ProjectConfigName is the project-level config file.
const ProjectConfigName = ".autoprice.yaml"

// Config is the complete autoprice configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	History HistoryConfig `yaml:"history" json:"history"`
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// TierConfig sizes one cache tier. TTL is a Go duration string.
type TierConfig struct {
	Capacity int    `yaml:"capacity" json:"capacity"`
	TTL      string `yaml:"ttl" json:"ttl"`
}

// CacheConfig configures the three cache tiers and the janitor.
type CacheConfig struct {
	Fast    TierConfig `yaml:"fast" json:"fast"`
	Session TierConfig `yaml:"session" json:"session"`
	Durable TierConfig `yaml:"durable" json:"durable"`

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval string `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	// Backend holds the durable tier and history: memory, file, sqlite or badger.
	Backend string `yaml:"backend" json:"backend"`

	// Path is the backend base path; the backend adds its own extension.
	Path string `yaml:"path" json:"path"`

	// SessionBackend holds the session tier. Defaults to memory, so the
	// session tier lives as long as the process.
	SessionBackend string `yaml:"session_backend" json:"session_backend"`
}

// SearchConfig tunes ranking output and memoization.
type SearchConfig struct {
	MaxResults      int    `yaml:"max_results" json:"max_results"`
	MemoTTL         string `yaml:"memo_ttl" json:"memo_ttl"`
	PrefixCacheSize int    `yaml:"prefix_cache_size" json:"prefix_cache_size"`
}

// HistoryConfig bounds the selection history.
type HistoryConfig struct {
	Limit int `yaml:"limit" json:"limit"`
}

// CatalogConfig locates the catalog files.
type CatalogConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	Watch    bool   `yaml:"watch" json:"watch"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures logging for long-running commands.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Cache: CacheConfig{
			Fast:            TierConfig{Capacity: 100, TTL: "5m"},
			Session:         TierConfig{Capacity: 500, TTL: "30m"},
			Durable:         TierConfig{Capacity: 1000, TTL: "24h"},
			CleanupInterval: "1m",
		},
		Storage: StorageConfig{
			Backend:        string(storage.KindSQLite),
			Path:           defaultStoragePath(),
			SessionBackend: string(storage.KindMemory),
		},
		Search: SearchConfig{
			MaxResults:      20,
			MemoTTL:         "10m",
			PrefixCacheSize: 1024,
		},
		History: HistoryConfig{Limit: 10},
		Catalog: CatalogConfig{
			Dir:      "catalog",
			Watch:    true,
			Debounce: "500ms",
		},
		Server: ServerConfig{LogLevel: "info"},
	}
}

// DataDir returns ~/.autoprice, the home of persisted state and logs.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".autoprice")
	}
	return filepath.Join(home, ".autoprice")
}

func defaultStoragePath() string {
	return filepath.Join(DataDir(), "data", "autoprice")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/autoprice/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/autoprice/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "autoprice", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "autoprice", "config.yaml")
	}
	return filepath.Join(home, ".config", "autoprice", "config.yaml")
}

// Load builds the configuration for dir, in increasing precedence:
//  1. Defaults
//  2. User config (GetUserConfigPath)
//  3. Project config (.autoprice.yaml in dir)
//  4. Environment variables (AUTOPRICE_*)
//
// A relative catalog dir or storage path is resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigError("invalid configuration", err).
			WithSuggestion("check " + ProjectConfigName + " and AUTOPRICE_* environment variables")
	}
	return cfg, nil
}

// loadYAML merges the non-zero values of one YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return apperrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	return nil
}

func mergeTier(dst *TierConfig, src TierConfig) {
	if src.Capacity != 0 {
		dst.Capacity = src.Capacity
	}
	if src.TTL != "" {
		dst.TTL = src.TTL
	}
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeTier(&c.Cache.Fast, other.Cache.Fast)
	mergeTier(&c.Cache.Session, other.Cache.Session)
	mergeTier(&c.Cache.Durable, other.Cache.Durable)
	if other.Cache.CleanupInterval != "" {
		c.Cache.CleanupInterval = other.Cache.CleanupInterval
	}

	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	if other.Storage.SessionBackend != "" {
		c.Storage.SessionBackend = other.Storage.SessionBackend
	}

	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.MemoTTL != "" {
		c.Search.MemoTTL = other.Search.MemoTTL
	}
	if other.Search.PrefixCacheSize != 0 {
		c.Search.PrefixCacheSize = other.Search.PrefixCacheSize
	}

	if other.History.Limit != 0 {
		c.History.Limit = other.History.Limit
	}

	// Watch can be explicitly false; take it whenever the section is present.
	if other.Catalog.Dir != "" || other.Catalog.Debounce != "" || other.Catalog.Watch {
		c.Catalog.Watch = other.Catalog.Watch
	}
	if other.Catalog.Dir != "" {
		c.Catalog.Dir = other.Catalog.Dir
	}
	if other.Catalog.Debounce != "" {
		c.Catalog.Debounce = other.Catalog.Debounce
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies AUTOPRICE_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AUTOPRICE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("AUTOPRICE_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("AUTOPRICE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("AUTOPRICE_CATALOG_DIR"); v != "" {
		c.Catalog.Dir = v
	}
	if v := os.Getenv("AUTOPRICE_CATALOG_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Catalog.Watch = b
		}
	}
	if v := os.Getenv("AUTOPRICE_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("AUTOPRICE_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.Limit = n
		}
	}
	if v := os.Getenv("AUTOPRICE_CLEANUP_INTERVAL"); v != "" {
		c.Cache.CleanupInterval = v
	}
}

func (c *Config) resolvePaths(dir string) {
	if c.Catalog.Dir != "" && !filepath.IsAbs(c.Catalog.Dir) {
		c.Catalog.Dir = filepath.Join(dir, c.Catalog.Dir)
	}
	if c.Storage.Path != "" && !filepath.IsAbs(c.Storage.Path) {
		c.Storage.Path = filepath.Join(dir, c.Storage.Path)
	}
}

// Validate checks ranges, enumerations and duration syntax.
func (c *Config) Validate() error {
	tiers := []struct {
		name string
		tier TierConfig
	}{
		{"fast", c.Cache.Fast},
		{"session", c.Cache.Session},
		{"durable", c.Cache.Durable},
	}
	for _, t := range tiers {
		if t.tier.Capacity < 1 {
			return fmt.Errorf("cache.%s.capacity must be at least 1, got %d", t.name, t.tier.Capacity)
		}
		if err := positiveDuration("cache."+t.name+".ttl", t.tier.TTL); err != nil {
			return err
		}
	}
	if err := positiveDuration("cache.cleanup_interval", c.Cache.CleanupInterval); err != nil {
		return err
	}

	if !validKind(c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be one of %s, got %q", kindList(), c.Storage.Backend)
	}
	if !validKind(c.Storage.SessionBackend) {
		return fmt.Errorf("storage.session_backend must be one of %s, got %q", kindList(), c.Storage.SessionBackend)
	}
	if storage.Kind(c.Storage.Backend) == storage.KindFile && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the file backend")
	}

	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be at least 1, got %d", c.Search.MaxResults)
	}
	if err := positiveDuration("search.memo_ttl", c.Search.MemoTTL); err != nil {
		return err
	}
	if c.Search.PrefixCacheSize < 1 {
		return fmt.Errorf("search.prefix_cache_size must be at least 1, got %d", c.Search.PrefixCacheSize)
	}

	if c.History.Limit < 1 {
		return fmt.Errorf("history.limit must be at least 1, got %d", c.History.Limit)
	}

	if err := positiveDuration("catalog.debounce", c.Catalog.Debounce); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

func positiveDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a duration like 5m or 500ms, got %q", field, value)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

func validKind(s string) bool {
	for _, k := range storage.Kinds() {
		if string(k) == s {
			return true
		}
	}
	return false
}

func kindList() string {
	names := make([]string, 0, len(storage.Kinds()))
	for _, k := range storage.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// duration parses a validated duration string; invalid values yield 0.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// TTLDuration returns the tier TTL.
func (t TierConfig) TTLDuration() time.Duration { return duration(t.TTL) }

// CleanupEvery returns the janitor interval.
func (c CacheConfig) CleanupEvery() time.Duration { return duration(c.CleanupInterval) }

// MemoTTLDuration returns the search memo TTL.
func (s SearchConfig) MemoTTLDuration() time.Duration { return duration(s.MemoTTL) }

// DebounceWindow returns the watcher debounce window.
func (c CatalogConfig) DebounceWindow() time.Duration { return duration(c.Debounce) }

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
