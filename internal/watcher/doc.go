// Package watcher reloads the catalog when its directory changes.
//
// CatalogWatcher uses fsnotify on the catalog directory and falls back to
// polling where fsnotify is unavailable (network mounts, some containers).
// Events for catalog files are debounced so an editor save or a bulk copy
// triggers one reload, not dozens.
//
// Usage:
//
//	w, err := watcher.New(dir, func(ctx context.Context, batch []watcher.FileEvent) {
//	    _ = app.Reload(ctx)
//	}, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
package watcher
