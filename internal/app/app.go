// Package app assembles autoprice's components from a Config.
//
// New builds every component once; commands and the MCP server receive
// them by reference from the App, never constructing their own.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/autoprice/internal/cache"
	"github.com/Aman-CERP/autoprice/internal/catalog"
	"github.com/Aman-CERP/autoprice/internal/config"
	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
	"github.com/Aman-CERP/autoprice/internal/history"
	"github.com/Aman-CERP/autoprice/internal/index"
	"github.com/Aman-CERP/autoprice/internal/search"
	"github.com/Aman-CERP/autoprice/internal/storage"
	"github.com/Aman-CERP/autoprice/internal/watcher"
)

// SessionPathSuffix is appended to storage.path for a persistent session
// backend, so it never shares a file or directory with the durable one.
const SessionPathSuffix = "-session"

// App owns the storage backends and every component built on them.
type App struct {
	Config  *config.Config
	Cache   *cache.Manager
	Index   *index.Index
	Engine  *search.Engine
	History *history.Store
	Janitor *cache.Janitor

	durable storage.Backend
	session storage.Backend
	logger  *slog.Logger

	reloadMu    sync.Mutex
	fingerprint string

	mu        sync.Mutex
	watcher   *watcher.CatalogWatcher
	closeOnce sync.Once
	closeErr  error
}

type options struct {
	clock   func() time.Time
	logger  *slog.Logger
	durable storage.Backend
	session storage.Backend
}

// Option configures New.
type Option func(*options)

// WithClock sets the time source of the cache and history.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBackends replaces the configured storage backends. App takes
// ownership and closes them.
func WithBackends(durable, session storage.Backend) Option {
	return func(o *options) {
		o.durable = durable
		o.session = session
	}
}

// New opens the storage backends named in cfg and builds the components.
// The index starts empty; call Reload to load the catalog.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigError("invalid configuration", err)
	}

	o := &options{clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg, logger: o.logger, durable: o.durable, session: o.session}

	if a.durable == nil {
		b, err := storage.Open(storage.Kind(cfg.Storage.Backend), cfg.Storage.Path)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeStorageOpen,
				fmt.Sprintf("cannot open %s storage at %s", cfg.Storage.Backend, cfg.Storage.Path), err)
		}
		a.durable = b
	}
	if a.session == nil {
		b, err := openSession(cfg.Storage)
		if err != nil {
			_ = a.durable.Close()
			return nil, apperrors.New(apperrors.ErrCodeStorageOpen,
				fmt.Sprintf("cannot open %s session storage", cfg.Storage.SessionBackend), err)
		}
		a.session = b
	}

	a.Cache = cache.NewManager(
		cache.WithClock(o.clock),
		cache.WithLogger(o.logger),
		cache.WithTierConfig(cache.TierFast, tierConfig(cfg.Cache.Fast)),
		cache.WithTierConfig(cache.TierSession, tierConfig(cfg.Cache.Session)),
		cache.WithTierConfig(cache.TierDurable, tierConfig(cfg.Cache.Durable)),
		cache.WithDurableBackend(a.durable),
		cache.WithSessionBackend(a.session),
	)
	a.Janitor = cache.NewJanitor(a.Cache, cfg.Cache.CleanupEvery())

	a.Index = index.New(
		index.WithPrefixCacheSize(cfg.Search.PrefixCacheSize),
		index.WithLogger(o.logger),
	)

	engine, err := search.NewEngine(a.Index, a.Cache, search.Config{
		MaxResults: cfg.Search.MaxResults,
		MemoTTL:    cfg.Search.MemoTTLDuration(),
		MemoTier:   cache.TierFast,
	}, search.WithLogger(o.logger))
	if err != nil {
		_ = a.closeBackends()
		return nil, err
	}
	a.Engine = engine

	a.History = history.New(a.durable,
		history.WithLimit(cfg.History.Limit),
		history.WithClock(o.clock),
		history.WithSource(a.Index),
		history.WithLogger(o.logger),
	)

	o.logger.Debug("app_initialized",
		slog.String("storage", cfg.Storage.Backend),
		slog.String("session_storage", cfg.Storage.SessionBackend),
		slog.String("catalog", cfg.Catalog.Dir))
	return a, nil
}

func openSession(sc config.StorageConfig) (storage.Backend, error) {
	kind := storage.Kind(sc.SessionBackend)
	if kind == storage.KindMemory || kind == "" {
		return storage.NewMemoryBackend(), nil
	}
	return storage.Open(kind, sc.Path+SessionPathSuffix)
}

func tierConfig(tc config.TierConfig) cache.TierConfig {
	return cache.TierConfig{Capacity: tc.Capacity, DefaultTTL: tc.TTLDuration()}
}

// ReloadResult describes one Reload.
type ReloadResult struct {
	// Skipped is true when the catalog was unchanged since the last ingest.
	Skipped bool
	Stats   index.IngestStats
}

// Reload loads the catalog directory and re-ingests it. An unchanged
// catalog is not re-ingested, so memoized searches stay valid.
func (a *App) Reload(ctx context.Context) (ReloadResult, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	docs, err := catalog.LoadDir(ctx, a.Config.Catalog.Dir)
	if err != nil {
		return ReloadResult{}, err
	}

	fp := catalog.Fingerprint(docs)
	if fp == a.fingerprint && a.Index.Generation() > 0 {
		a.logger.Debug("catalog_unchanged", slog.String("fingerprint", fp))
		return ReloadResult{Skipped: true, Stats: a.Index.Stats().LastIngest}, nil
	}

	stats := a.Index.Ingest(docs)
	a.fingerprint = fp
	return ReloadResult{Stats: stats}, nil
}

// StartBackground starts the cache janitor and, when catalog.watch is set,
// the catalog watcher. Both stop on Close or when ctx is done.
func (a *App) StartBackground(ctx context.Context) error {
	a.Janitor.Start(ctx)

	if !a.Config.Catalog.Watch {
		return nil
	}

	w, err := watcher.New(a.Config.Catalog.Dir, a.onCatalogChange, watcher.Options{
		DebounceWindow: a.Config.Catalog.DebounceWindow(),
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.watcher = w
	a.mu.Unlock()
	return nil
}

func (a *App) onCatalogChange(ctx context.Context, batch []watcher.FileEvent) {
	res, err := a.Reload(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.LogAttrs(ctx, slog.LevelWarn, "catalog_reload_failed", apperrors.LogAttrs(err)...)
		}
		return
	}
	a.logger.Info("catalog_reloaded",
		slog.Int("events", len(batch)),
		slog.Bool("skipped", res.Skipped),
		slog.Uint64("generation", res.Stats.Generation),
		slog.Int("documents", res.Stats.Documents))
}

// WatchMode reports the active watcher mechanism, or "" when not watching.
func (a *App) WatchMode() watcher.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watcher == nil {
		return ""
	}
	return a.watcher.Mode()
}

// Close stops background work and closes the storage backends.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		w := a.watcher
		a.watcher = nil
		a.mu.Unlock()

		var errs []error
		if w != nil {
			errs = append(errs, w.Stop())
		}
		a.Janitor.Stop()
		errs = append(errs, a.closeBackends())
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *App) closeBackends() error {
	var errs []error
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	if a.durable != nil {
		errs = append(errs, a.durable.Close())
	}
	return errors.Join(errs...)
}
