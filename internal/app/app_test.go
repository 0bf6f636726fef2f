package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/autoprice/internal/cache"
	"github.com/Aman-CERP/autoprice/internal/config"
	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
	"github.com/Aman-CERP/autoprice/internal/history"
	"github.com/Aman-CERP/autoprice/internal/storage"
	"github.com/Aman-CERP/autoprice/internal/watcher"
)

const teslaCatalog = `[
  {"id": "tesla-3", "brand": "Tesla", "name": "Model 3", "price": 42990,
   "configs": [{"id": "lr", "name": "Long Range", "price": 49990}]},
  {"id": "tesla-s", "brand": "Tesla", "name": "Model S", "price": 89990}
]`

const bmwCatalog = `{"cars": [{"id": "bmw-x5", "brand": "BMW", "name": "X5", "price": 65000}]}`

func writeCatalog(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.Backend = string(storage.KindMemory)
	cfg.Storage.Path = ""
	cfg.Catalog.Dir = t.TempDir()
	cfg.Catalog.Watch = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Limit = 0

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), apperrors.ErrCodeConfigInvalid)
}

func TestNew_WiresConfiguredSizes(t *testing.T) {
	// Given: custom tier sizes and history limit
	cfg := testConfig(t)
	cfg.Cache.Fast = config.TierConfig{Capacity: 7, TTL: "2m"}
	cfg.History.Limit = 3

	// When: building the app
	a := newTestApp(t, cfg)

	// Then: components reflect the config
	stats := a.Cache.Stats()
	require.Equal(t, cache.TierFast, stats.Tiers[0].Tier)
	assert.Equal(t, 7, stats.Tiers[0].Capacity)
	assert.Equal(t, 2*time.Minute, stats.Tiers[0].DefaultTTL)

	for i := 0; i < 5; i++ {
		a.History.Add(history.Item{Brand: "B", Name: string(rune('a' + i))})
	}
	assert.Equal(t, 3, a.History.Len())
}

func TestReload_IngestsAndSkipsUnchanged(t *testing.T) {
	// Given: a catalog directory with two files
	cfg := testConfig(t)
	writeCatalog(t, cfg.Catalog.Dir, "tesla.json", teslaCatalog)
	writeCatalog(t, cfg.Catalog.Dir, "bmw.json", bmwCatalog)
	a := newTestApp(t, cfg)

	// When: reloading the first time
	res, err := a.Reload(context.Background())

	// Then: all documents are ingested as generation 1
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, uint64(1), res.Stats.Generation)
	assert.Equal(t, 3, res.Stats.Documents)

	// When: reloading without changes
	res, err = a.Reload(context.Background())

	// Then: the ingest is skipped and the generation stays
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, uint64(1), a.Index.Generation())

	// When: a file changes
	writeCatalog(t, cfg.Catalog.Dir, "bmw.json", `[]`)
	res, err = a.Reload(context.Background())

	// Then: a new generation replaces the old one
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, uint64(2), res.Stats.Generation)
	assert.Equal(t, 2, res.Stats.Documents)
}

func TestReload_MissingDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Dir = filepath.Join(cfg.Catalog.Dir, "missing")
	a := newTestApp(t, cfg)

	_, err := a.Reload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), apperrors.ErrCodeCatalogLoad)
}

func TestSearchAndHistory_EndToEnd(t *testing.T) {
	// Given: a loaded catalog
	cfg := testConfig(t)
	writeCatalog(t, cfg.Catalog.Dir, "tesla.json", teslaCatalog)
	a := newTestApp(t, cfg)
	_, err := a.Reload(context.Background())
	require.NoError(t, err)

	// When: searching and remembering the top config result
	results := a.Engine.Query("model 3")
	require.NotEmpty(t, results)
	top := results[0]
	doc, ok := a.Index.Document(top.DocumentID)
	require.True(t, ok)
	cfgEntry, ok := doc.Config("lr")
	require.True(t, ok)
	a.History.Add(history.Snapshot(doc, &cfgEntry))

	// Then: the item can be matched back to the live catalog
	m, ok := a.History.FindMatch("Tesla", "Model 3", 49990)
	require.True(t, ok)
	require.NotNil(t, m.Config)
	assert.Equal(t, "lr", m.Config.ID)

	// And: the search was memoized in the fast tier
	assert.Equal(t, 1, a.Cache.Len(cache.TierFast))
}

func TestDurableState_SurvivesRestart(t *testing.T) {
	// Given: a sqlite-backed app
	cfg := testConfig(t)
	cfg.Storage.Backend = string(storage.KindSQLite)
	cfg.Storage.Path = filepath.Join(t.TempDir(), "autoprice")

	first, err := New(cfg)
	require.NoError(t, err)
	first.Cache.Set("quote:tesla-3", "49990", cache.WithTier(cache.TierDurable))
	first.History.Add(history.Item{Brand: "Tesla", Name: "Model 3", Price: 49990})
	require.NoError(t, first.Close())

	// When: opening a second app on the same path
	second := newTestApp(t, cfg)

	// Then: the durable entry and history are restored
	v, ok := second.Cache.Get("quote:tesla-3", cache.TierDurable)
	require.True(t, ok)
	assert.Equal(t, "49990", v)
	require.Equal(t, 1, second.History.Len())
	assert.Equal(t, "Model 3", second.History.List()[0].Name)
}

func TestWithBackends(t *testing.T) {
	durable := storage.NewMemoryBackend()
	a := newTestApp(t, testConfig(t), WithBackends(durable, storage.NewMemoryBackend()))

	a.Cache.Set("k", "v", cache.WithTier(cache.TierDurable))

	_, ok, err := durable.Read(cache.DurableStorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStartBackground_WatchReloads(t *testing.T) {
	// Given: a watched catalog with a short debounce
	cfg := testConfig(t)
	cfg.Catalog.Watch = true
	cfg.Catalog.Debounce = "50ms"
	writeCatalog(t, cfg.Catalog.Dir, "tesla.json", teslaCatalog)
	a := newTestApp(t, cfg)
	_, err := a.Reload(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.StartBackground(ctx))
	assert.Contains(t, []watcher.Mode{watcher.ModeFsnotify, watcher.ModePolling}, a.WatchMode())

	// When: a new catalog file appears
	writeCatalog(t, cfg.Catalog.Dir, "bmw.json", bmwCatalog)

	// Then: the index picks it up
	if a.WatchMode() == watcher.ModeFsnotify {
		assert.Eventually(t, func() bool {
			_, ok := a.Index.Document("bmw-x5")
			return ok
		}, 3*time.Second, 20*time.Millisecond)
	}
}

func TestStartBackground_NoWatch(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	require.NoError(t, a.StartBackground(context.Background()))
	assert.Equal(t, watcher.Mode(""), a.WatchMode())
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, a.StartBackground(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Close())
		}()
	}
	wg.Wait()
}
